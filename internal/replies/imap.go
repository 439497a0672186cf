package replies

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Message is an unseen mail with its raw header block.
type Message struct {
	UID    imap.UID
	Header []byte
}

// Mailbox is the part of an IMAP session the tracker uses.
type Mailbox interface {
	Unseen(ctx context.Context, max int) ([]Message, error)
	MarkSeen(ctx context.Context, uids []imap.UID) error
	Close() error
}

type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
	// Since limits the search window; zero means 30 days.
	Since time.Duration
}

type imapMailbox struct {
	c     *imapclient.Client
	since time.Duration
	// stop drops the context watch registered at dial time
	stop func() bool
}

// DialIMAP connects over TLS, logs in and selects the configured mailbox.
func DialIMAP(ctx context.Context, cfg IMAPConfig) (Mailbox, error) {
	if cfg.Host == "" {
		return nil, errors.New("imap host is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("imap username/password is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 993
	}
	mailbox := cfg.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}

	c, err := imapclient.DialTLS(net.JoinHostPort(cfg.Host, strconv.Itoa(port)), &imapclient.Options{
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: cfg.Host},
	})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}

	// unblock pending commands when the caller gives up
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })

	if err := c.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		stop()
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select(mailbox, &imap.SelectOptions{ReadOnly: false}).Wait(); err != nil {
		stop()
		_ = c.Close()
		return nil, fmt.Errorf("imap select %q: %w", mailbox, err)
	}

	since := cfg.Since
	if since <= 0 {
		since = 30 * 24 * time.Hour
	}
	return &imapMailbox{c: c, since: since, stop: stop}, nil
}

// Unseen returns up to max unseen messages, newest first. Headers are
// fetched with BODY.PEEK so nothing is flagged \Seen here.
func (m *imapMailbox) Unseen(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 200
	}
	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Since:   time.Now().Add(-m.since),
	}
	searchData, err := m.c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search unseen: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}
	if len(uids) > max {
		uids = uids[:max]
	}

	header := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierHeader,
		Peek:      true,
	}
	fetchCmd := m.c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{header},
	})
	defer func() { _ = fetchCmd.Close() }()

	out := make([]Message, 0, len(uids))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}
		msg := Message{UID: buf.UID}
		if b := buf.FindBodySection(header); b != nil {
			msg.Header = append([]byte(nil), b...)
		}
		out = append(out, msg)
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}
	return out, nil
}

func (m *imapMailbox) MarkSeen(_ context.Context, uids []imap.UID) error {
	if len(uids) == 0 {
		return nil
	}
	cmd := m.c.Store(imap.UIDSetNum(uids...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap store add seen: %w", err)
	}
	return nil
}

// Close logs out then closes the connection.
func (m *imapMailbox) Close() error {
	if m.stop != nil {
		m.stop()
	}
	if err := m.c.Logout().Wait(); err != nil {
		log.Printf("[replies] warn: imap logout: %v", err)
	}
	return m.c.Close()
}
