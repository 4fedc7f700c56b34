package email

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DevSender writes emails to disk instead of sending them, for local
// development without provider credentials.
type DevSender struct {
	dir string
}

func NewDevSender(dir string) (*DevSender, error) {
	if dir == "" {
		dir = "./tmp/emails"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("email: create dev sender dir: %w", err)
	}
	return &DevSender{dir: dir}, nil
}

func (s *DevSender) SendEmail(_ context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	name := fmt.Sprintf("%d_%s.html",
		time.Now().UnixNano(),
		strings.ReplaceAll(params.SendTo, "@", "_at_"),
	)
	body := fmt.Sprintf("<!-- to: %s subject: %s tag: %s -->\n%s",
		params.SendTo, params.Subject, params.Tag, params.BodyHTML)

	if err := os.WriteFile(filepath.Join(s.dir, name), []byte(body), 0o644); err != nil {
		return fmt.Errorf("email: write dev email: %w", err)
	}
	return nil
}
