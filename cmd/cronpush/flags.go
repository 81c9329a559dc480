package main

import (
	"reflect"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sznuper/cronpush/internal/config"
)

// eachOption calls fn with the flag name and yaml key of every config.Options
// field. Flag names are the yaml tags in kebab-case.
func eachOption(fn func(i int, flag, key string)) {
	t := reflect.TypeOf(config.Options{})
	for i := range t.NumField() {
		key := t.Field(i).Tag.Get("yaml")
		fn(i, strings.ReplaceAll(key, "_", "-"), key)
	}
}

// registerOptionFlags adds a persistent --flag for every field in config.Options.
func registerOptionFlags(cmd *cobra.Command) {
	eachOption(func(_ int, flag, key string) {
		cmd.PersistentFlags().String(flag, "", "override options."+key)
	})
}

// applyOptionFlags overlays flags the user set explicitly onto cfg.Options.
func applyOptionFlags(cmd *cobra.Command, cfg *config.Config) {
	v := reflect.ValueOf(&cfg.Options).Elem()
	eachOption(func(i int, flag, _ string) {
		if !cmd.Flags().Changed(flag) {
			return
		}
		val, _ := cmd.Flags().GetString(flag)
		v.Field(i).SetString(val)
	})
}
