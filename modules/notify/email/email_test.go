package email

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/jobwatch/internal/core"
	"github.com/flemzord/jobwatch/internal/security"
	"github.com/flemzord/jobwatch/pkg/jobs"
	"gopkg.in/yaml.v3"
)

// smtpServer is a minimal plaintext SMTP server recording every DATA payload.
type smtpServer struct {
	ln net.Listener

	mu    sync.Mutex
	rcpts []string
	data  []string
}

func newSMTPServer(t *testing.T) *smtpServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &smtpServer{ln: ln}
	go s.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

func (s *smtpServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *smtpServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *smtpServer) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }

	reply("220 localhost ESMTP test")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"):
			reply("250-localhost")
			reply("250 8BITMIME")
		case strings.HasPrefix(cmd, "RCPT TO:"):
			s.mu.Lock()
			s.rcpts = append(s.rcpts, strings.TrimSpace(line[len("RCPT TO:"):]))
			s.mu.Unlock()
			reply("250 OK")
		case cmd == "DATA":
			reply("354 go ahead")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			s.mu.Lock()
			s.data = append(s.data, b.String())
			s.mu.Unlock()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func (s *smtpServer) messages() ([]string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.data...), append([]string(nil), s.rcpts...)
}

func configure(t *testing.T, raw string) *Email {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &node); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	e := &Email{}
	if err := e.Configure(node.Content[0]); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	return e
}

func TestConfigureDefaults(t *testing.T) {
	t.Parallel()

	e := configure(t, "smtp_host: mail.example.com\nfrom: a@example.com\nto: [b@example.com]\n")
	if e.config.Port != 587 {
		t.Errorf("Port = %d, want 587", e.config.Port)
	}
	if e.config.TLS != "opportunistic" {
		t.Errorf("TLS = %q, want opportunistic", e.config.TLS)
	}
	if e.config.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", e.config.Timeout)
	}
	if err := e.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"missing host", Config{Port: 25, From: "a@x.io", To: []string{"b@x.io"}, TLS: "none"}, "smtp_host is required"},
		{"bad from", Config{Host: "h", Port: 25, From: "nope", To: []string{"b@x.io"}, TLS: "none"}, "invalid from"},
		{"no recipients", Config{Host: "h", Port: 25, From: "a@x.io", TLS: "none"}, "at least one recipient"},
		{"bad recipient", Config{Host: "h", Port: 25, From: "a@x.io", To: []string{"@@"}, TLS: "none"}, "invalid recipient"},
		{"half credentials", Config{Host: "h", Port: 25, From: "a@x.io", To: []string{"b@x.io"}, Username: "u", TLS: "none"}, "set together"},
		{"bad tls", Config{Host: "h", Port: 25, From: "a@x.io", To: []string{"b@x.io"}, TLS: "starttls"}, "invalid tls"},
		{"bad port", Config{Host: "h", Port: 70000, From: "a@x.io", To: []string{"b@x.io"}, TLS: "none"}, "invalid smtp_port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestProvisionRegistersPassword(t *testing.T) {
	t.Parallel()

	redactor := security.NewRedactor()
	ctx := core.NewAppContext(nil)
	ctx.RegisterService("security.redactor", redactor)

	e := configure(t, "smtp_host: h\nfrom: a@x.io\nto: [b@x.io]\nusername: u\npassword: hunter2hunter2\n")
	if err := e.Provision(ctx); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if got := redactor.Redact("pw=hunter2hunter2"); strings.Contains(got, "hunter2") {
		t.Errorf("Redact() = %q, password leaked", got)
	}
}

func TestSend(t *testing.T) {
	t.Parallel()

	srv := newSMTPServer(t)
	e := configure(t, "smtp_host: 127.0.0.1\nsmtp_port: "+strconv.Itoa(srv.port())+
		"\nfrom: jobwatch@example.com\nto: [ops@example.com, oncall@example.com]\ntls: none\ntimeout: 5s\n")
	if err := e.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	inc := jobs.Incident{
		ID:          "inc-1",
		JobID:       "nightly-backup",
		Kind:        jobs.KindFailed,
		DetectedAt:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		BuildNumber: 42,
		BuildStatus: jobs.StatusFailure,
	}
	if err := e.Send(t.Context(), inc); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	data, rcpts := srv.messages()
	if len(data) != 1 {
		t.Fatalf("got %d messages, want 1", len(data))
	}
	if len(rcpts) != 2 {
		t.Errorf("got %d recipients, want 2", len(rcpts))
	}
	if !strings.Contains(data[0], "Subject: Jenkins Job Alert: nightly-backup") {
		t.Errorf("message missing subject:\n%s", data[0])
	}
	if !strings.Contains(data[0], "X-Jobwatch-Incident: inc-1") {
		t.Errorf("message missing incident header:\n%s", data[0])
	}
}

func TestSendUnreachable(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	e := configure(t, "smtp_host: 127.0.0.1\nsmtp_port: "+strconv.Itoa(port)+
		"\nfrom: a@x.io\nto: [b@x.io]\ntls: none\ntimeout: 1s\n")
	if err := e.Send(t.Context(), jobs.Incident{JobID: "j", Kind: jobs.KindMissed}); err == nil {
		t.Fatal("Send() error = nil, want connection error")
	}
}

func TestReloadSwapsConfig(t *testing.T) {
	t.Parallel()

	e := configure(t, "smtp_host: old.example.com\nfrom: a@x.io\nto: [b@x.io]\n")

	var root yaml.Node
	if err := yaml.Unmarshal([]byte("smtp_host: new.example.com\nfrom: a@x.io\nto: [c@x.io]\n"), &root); err != nil {
		t.Fatal(err)
	}
	ctx := core.NewAppContext(nil).WithModuleConfigs(map[string]yaml.Node{string(ModuleID): *root.Content[0]})
	if err := e.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if e.config.Host != "new.example.com" || e.config.To[0] != "c@x.io" {
		t.Errorf("config = %+v, want reloaded values", e.config)
	}

	var bad yaml.Node
	if err := yaml.Unmarshal([]byte("smtp_host: ''\nfrom: a@x.io\nto: [c@x.io]\n"), &bad); err != nil {
		t.Fatal(err)
	}
	ctx = core.NewAppContext(nil).WithModuleConfigs(map[string]yaml.Node{string(ModuleID): *bad.Content[0]})
	if err := e.Reload(ctx); err == nil {
		t.Fatal("Reload() with invalid config error = nil")
	}
	if e.config.Host != "new.example.com" {
		t.Errorf("Host = %q, invalid reload must keep previous config", e.config.Host)
	}
}
