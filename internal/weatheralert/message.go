// Package weatheralert is the bundled agent script: it posts the scheduled
// Telegram test message and records what it sent in a JSON cache that the
// runner commits back to the repository.
package weatheralert

import (
	"fmt"
	"net/url"
	"time"
)

// Environment variable names read by the agent.
const (
	EnvBotToken   = "TELEGRAM_BOT_TOKEN"
	EnvChatID     = "TELEGRAM_CHAT_ID"
	EnvRedemetKey = "REDEMET_API_KEY"
)

const timestampLayout = "2006-01-02 15:04:05"

// Credentials are read from the environment the runner builds.
type Credentials struct {
	BotToken string
	ChatID   string
	// RedemetKey is accepted for the upcoming REDEMET alerts and not used yet.
	RedemetKey string
}

// CredentialsFromEnv reads the agent credentials with getenv. The Telegram
// token and chat are required.
func CredentialsFromEnv(getenv func(string) string) (Credentials, error) {
	c := Credentials{
		BotToken:   getenv(EnvBotToken),
		ChatID:     getenv(EnvChatID),
		RedemetKey: getenv(EnvRedemetKey),
	}
	if c.BotToken == "" {
		return c, fmt.Errorf("%s not found in environment", EnvBotToken)
	}
	if c.ChatID == "" {
		return c, fmt.Errorf("%s not found in environment", EnvChatID)
	}
	return c, nil
}

// TelegramURL returns the shoutrrr URL for the bot and chat. Messages are
// sent with Markdown parsing.
func (c Credentials) TelegramURL() string {
	q := url.Values{}
	q.Set("chats", c.ChatID)
	q.Set("parsemode", "Markdown")
	return fmt.Sprintf("telegram://%s@telegram?%s", c.BotToken, q.Encode())
}

// Message renders the scheduled test message stamped with now in UTC.
func Message(now time.Time) string {
	return fmt.Sprintf(`*ALERTA DE TESTE AGENDADO DO SEU AGENTE DE IA!* 🤖

Olá, meteorologista!
Esta é uma mensagem de teste AGENDADA enviada pelo seu agente de IA.
Se você está lendo isso no Telegram a cada 10 minutos, significa que o agendamento está funcionando! 🎉

*Hora do teste (UTC):* `+"`%s`"+`

_Aguardando a liberação da API da REDEMET para os alertas reais!_`, now.UTC().Format(timestampLayout))
}
