// Package secrets resolves credentials that never live in config.yml.
package secrets

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"leadgen-engine/internal/config"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups the engine's secrets in the OS keychain.
	KeyringService = "leadgen"
)

// Secret names accepted by Set/Delete and the /api/secrets endpoint.
const (
	LLMKey       = "llm"
	DeliveryKey  = "delivery"
	SMTPPassword = "smtp"
	IMAPPassword = "imap"
)

var ErrUnknownSecret = errors.New("unknown secret")

// Account returns the keychain account for a named secret. Mailbox
// credentials are keyed by user@host so several accounts can coexist.
func Account(cfg config.Config, name string) (string, error) {
	switch name {
	case LLMKey:
		return "leadgen:llm", nil
	case DeliveryKey:
		return "leadgen:delivery", nil
	case SMTPPassword:
		return fmt.Sprintf("leadgen:smtp:%s@%s", cfg.Delivery.SMTPUsername, cfg.Delivery.SMTPHost), nil
	case IMAPPassword:
		return fmt.Sprintf("leadgen:imap:%s@%s", cfg.Replies.Username, cfg.Replies.IMAPHost), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSecret, name)
	}
}

func Get(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errors.New("keyring account name is empty")
	}
	return keyring.Get(KeyringService, account)
}

func Set(cfg config.Config, name, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New("secret is empty")
	}
	acct, err := Account(cfg, name)
	if err != nil {
		return err
	}
	return keyring.Set(KeyringService, acct, value)
}

func Delete(cfg config.Config, name string) error {
	acct, err := Account(cfg, name)
	if err != nil {
		return err
	}
	return keyring.Delete(KeyringService, acct)
}

// Resolve fills every secret still empty after the environment overlay
// from the keychain. A missing entry is not an error; validation of the
// features that need it happens where they are built.
func Resolve(cfg *config.Config) {
	fill := func(dst *string, name string) {
		if strings.TrimSpace(*dst) != "" {
			return
		}
		acct, _ := Account(*cfg, name)
		v, err := Get(acct)
		switch {
		case err == nil:
			*dst = v
		case errors.Is(err, keyring.ErrNotFound):
		default:
			log.Printf("[secrets] warn: keyring lookup %s: %v", acct, err)
		}
	}

	if cfg.LLM.Enabled {
		fill(&cfg.LLM.APIKey, LLMKey)
	}
	if cfg.Delivery.Provider == "smtp" {
		fill(&cfg.Delivery.SMTPPassword, SMTPPassword)
	} else {
		fill(&cfg.Delivery.APIKey, DeliveryKey)
	}
	if cfg.Replies.Enabled {
		fill(&cfg.Replies.Password, IMAPPassword)
	}
}
