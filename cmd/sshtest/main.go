// Command sshtest is a scripted SSH client for exercising a running
// sshwarmad: connect, send a scripted sequence of lines, and print
// whatever comes back (optionally waiting for a pattern first).
package main

import (
	"bytes"
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"golang.org/x/crypto/ssh"
)

type options struct {
	Addr    string   `long:"addr" short:"a" default:"localhost:2222" description:"server address"`
	Key     string   `long:"key" short:"k" description:"SSH private key path (default ~/.ssh/id_ed25519)"`
	User    string   `long:"user" short:"u" description:"username (default current user)"`
	Cmd     []string `long:"cmd" short:"c" description:"command to send (repeatable)"`
	WaitFor string   `long:"wait-for" short:"f" description:"wait until this pattern appears in output"`
	Timeout int      `long:"timeout" short:"t" default:"5000" description:"max wait time in milliseconds"`
	Raw     bool     `long:"raw" short:"r" description:"print raw bytes as a hex dump"`
	Offset  int      `long:"offset" short:"o" description:"skip first N lines of output"`
	Limit   int      `long:"limit" short:"l" default:"-1" description:"show only N lines of output"`
}

func main() {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		os.Exit(1)
	}

	if len(opts.Cmd) == 0 {
		fmt.Fprintln(os.Stderr, "error: at least one --cmd is required")
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	username := opts.User
	if username == "" {
		if u, err := user.Current(); err == nil {
			username = u.Username
		}
	}

	keyPath := opts.Key
	if keyPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			keyPath = home + "/.ssh/id_ed25519"
		}
	}
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("read private key %s: %w", keyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}

	fmt.Fprintf(os.Stderr, "connecting to %s as %s...\n", opts.Addr, username)

	client, err := ssh.Dial("tcp", opts.Addr, &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("dial %s: %w", opts.Addr, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	var output bytes.Buffer
	session.Stdout = &output
	session.Stderr = &output
	stdin, err := session.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin pipe: %w", err)
	}

	modes := ssh.TerminalModes{ssh.ECHO: 0}
	if err := session.RequestPty("xterm", 24, 80, modes); err != nil {
		return fmt.Errorf("request pty: %w", err)
	}
	if err := session.Shell(); err != nil {
		return fmt.Errorf("start shell: %w", err)
	}

	fmt.Fprintf(os.Stderr, "connected, sending %d command(s)...\n", len(opts.Cmd))
	time.Sleep(200 * time.Millisecond)

	for _, cmd := range opts.Cmd {
		fmt.Fprintf(os.Stderr, "> %s\n", cmd)
		if _, err := fmt.Fprintf(stdin, "%s\r", cmd); err != nil {
			return fmt.Errorf("send command %q: %w", cmd, err)
		}
		time.Sleep(100 * time.Millisecond)
	}

	timeout := time.Duration(opts.Timeout) * time.Millisecond
	deadline := time.Now().Add(timeout)
	if opts.WaitFor != "" {
		fmt.Fprintf(os.Stderr, "waiting for %q...\n", opts.WaitFor)
		for time.Now().Before(deadline) {
			if strings.Contains(output.String(), opts.WaitFor) {
				break
			}
			time.Sleep(50 * time.Millisecond)
		}
	} else {
		time.Sleep(timeout)
	}

	raw := output.Bytes()
	fmt.Fprintf(os.Stderr, "--- output (%d bytes) ---\n", len(raw))

	if opts.Raw {
		printHexDump(raw)
	} else {
		sliced := sliceLines(escapeANSI(raw), opts.Offset, opts.Limit)
		fmt.Print(sliced)
		if !strings.HasSuffix(sliced, "\n") {
			fmt.Println()
		}
	}
	fmt.Fprintln(os.Stderr, "---")

	return nil
}

// escapeANSI renders control bytes as readable \e/\a/\b/\xNN escapes,
// mirroring what a human reading a terminal transcript would expect,
// instead of dumping raw control characters to the caller's terminal.
func escapeANSI(data []byte) string {
	var b strings.Builder
	for i := 0; i < len(data); i++ {
		switch c := data[i]; {
		case c == 0x1b:
			b.WriteString("\\e")
		case c == 0x07:
			b.WriteString("\\a")
		case c == 0x08:
			b.WriteString("\\b")
		case c == '\t', c == '\n':
			b.WriteByte(c)
		case c == '\r':
			b.WriteString("\\r")
		case c < 0x20 || c == 0x7f:
			fmt.Fprintf(&b, "\\x%02x", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// sliceLines returns lines[offset:offset+limit], clamped to the
// available range; a negative limit means "to the end".
func sliceLines(text string, offset, limit int) string {
	lines := strings.Split(text, "\n")
	if offset > len(lines) {
		offset = len(lines)
	}
	end := len(lines)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	return strings.Join(lines[offset:end], "\n")
}

func printHexDump(data []byte) {
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		chunk := data[i:end]

		fmt.Printf("%04x: ", i)
		for j := 0; j < 16; j++ {
			if j < len(chunk) {
				fmt.Printf("%02x ", chunk[j])
			} else {
				fmt.Print("   ")
			}
		}
		fmt.Print(" ")
		for _, c := range chunk {
			if c >= 0x20 && c < 0x7f {
				fmt.Printf("%c", c)
			} else {
				fmt.Print(".")
			}
		}
		fmt.Println()
	}
}
