// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package util

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

// Console represents an SSH management console, serving interactive shells
// and single command executions.
type Console struct {
	// Banner is the login welcome banner
	Banner string
	// Help is the `help` command output
	Help func(*term.Terminal) string
	// Handler is the terminal command handler
	Handler func(*term.Terminal, string) error
	// Listener is the network listener
	Listener net.Listener
	// AuthorizedKeys, when set, restricts logins to the listed public
	// keys (authorized_keys format), otherwise no authentication is
	// required.
	AuthorizedKeys []byte

	mu sync.Mutex
	// terminal of the last interactive shell
	active *term.Terminal
}

// Terminal returns the terminal of the active interactive shell, if any.
func (c *Console) Terminal() *term.Terminal {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.active
}

// RFC4254 6.2, 6.5 and 6.7 request payloads
type ptyRequest struct {
	Term     string
	Columns  uint32
	Rows     uint32
	Width    uint32
	Height   uint32
	Modelist string
}

type execRequest struct {
	Command string
}

type windowChange struct {
	Columns uint32
	Rows    uint32
	Width   uint32
	Height  uint32
}

type exitStatus struct {
	Status uint32
}

// session represents an SSH session channel.
type session struct {
	console *Console
	channel ssh.Channel
	term    *term.Terminal
}

func (s *session) shell() {
	c := s.console
	t := s.term

	defer s.channel.Close()

	c.mu.Lock()
	c.active = t
	c.mu.Unlock()

	logWriter := log.Writer()

	log.SetOutput(io.MultiWriter(logWriter, t))
	defer log.SetOutput(logWriter)

	t.SetPrompt(string(t.Escape.Red) + "> " + string(t.Escape.Reset))

	fmt.Fprintf(t, "%s\n", c.Banner)

	if c.Help != nil {
		fmt.Fprintf(t, "%s\n", string(t.Escape.Cyan)+c.Help(t)+string(t.Escape.Reset))
	}

	for {
		line, err := t.ReadLine()

		if err == io.EOF {
			break
		}

		if err != nil {
			log.Printf("readline error: %v", err)
			continue
		}

		if err = c.Handler(t, line); err == io.EOF {
			break
		}

		if err != nil {
			fmt.Fprintf(t, "error: %v\n", err)
		}
	}

	c.mu.Lock()

	if c.active == t {
		c.active = nil
	}

	c.mu.Unlock()

	log.Printf("closing ssh session")
}

func (s *session) exec(cmd string) {
	var status exitStatus

	defer s.channel.Close()

	if err := s.console.Handler(s.term, cmd); err != nil && err != io.EOF {
		fmt.Fprintf(s.term, "error: %v\n", err)
		status.Status = 1
	}

	_, _ = s.channel.SendRequest("exit-status", false, ssh.Marshal(&status))
}

func (s *session) serve(requests <-chan *ssh.Request) {
	started := false

	for req := range requests {
		ok := false

		switch req.Type {
		case "pty-req":
			var pty ptyRequest

			if err := ssh.Unmarshal(req.Payload, &pty); err != nil {
				log.Printf("malformed pty-req request, %v", err)
				break
			}

			_ = s.term.SetSize(int(pty.Columns), int(pty.Rows))
			ok = true
		case "window-change":
			var win windowChange

			if err := ssh.Unmarshal(req.Payload, &win); err != nil {
				log.Printf("malformed window-change request, %v", err)
				break
			}

			_ = s.term.SetSize(int(win.Columns), int(win.Rows))
			ok = true
		case "shell":
			if started || len(req.Payload) != 0 {
				break
			}

			started, ok = true, true
			go s.shell()
		case "exec":
			var e execRequest

			if started {
				break
			}

			if err := ssh.Unmarshal(req.Payload, &e); err != nil {
				log.Printf("malformed exec request, %v", err)
				break
			}

			started, ok = true, true
			go s.exec(e.Command)
		}

		if req.WantReply {
			_ = req.Reply(ok, nil)
		}
	}
}

func (c *Console) handleChannel(newChannel ssh.NewChannel) {
	if t := newChannel.ChannelType(); t != "session" {
		_ = newChannel.Reject(ssh.UnknownChannelType, fmt.Sprintf("unknown channel type: %s", t))
		return
	}

	channel, requests, err := newChannel.Accept()

	if err != nil {
		log.Printf("error accepting channel, %v", err)
		return
	}

	s := &session{
		console: c,
		channel: channel,
		term:    term.NewTerminal(channel, ""),
	}

	go s.serve(requests)
}

func (c *Console) listen(srv *ssh.ServerConfig) {
	for {
		conn, err := c.Listener.Accept()

		if err != nil {
			log.Printf("error accepting connection, %v", err)
			return
		}

		sshConn, chans, reqs, err := ssh.NewServerConn(conn, srv)

		if err != nil {
			log.Printf("error accepting handshake, %v", err)
			continue
		}

		log.Printf("new ssh connection from %s (%s)", sshConn.RemoteAddr(), sshConn.ClientVersion())

		go ssh.DiscardRequests(reqs)

		go func() {
			for newChannel := range chans {
				go c.handleChannel(newChannel)
			}
		}()
	}
}

func (c *Console) config() (srv *ssh.ServerConfig, err error) {
	srv = &ssh.ServerConfig{}

	if len(c.AuthorizedKeys) == 0 {
		srv.NoClientAuth = true
		return
	}

	var keys [][]byte

	for rest := c.AuthorizedKeys; len(rest) > 0; {
		var key ssh.PublicKey

		if key, _, _, rest, err = ssh.ParseAuthorizedKey(rest); err != nil {
			return nil, fmt.Errorf("invalid authorized key, %v", err)
		}

		keys = append(keys, key.Marshal())
	}

	srv.PublicKeyCallback = func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
		for _, k := range keys {
			if bytes.Equal(k, key.Marshal()) {
				return nil, nil
			}
		}

		return nil, errors.New("unauthorized key")
	}

	return
}

// Start instantiates an SSH console on the console listener.
func (c *Console) Start() (err error) {
	srv, err := c.config()

	if err != nil {
		return
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)

	if err != nil {
		return fmt.Errorf("private key generation error: %v", err)
	}

	signer, err := ssh.NewSignerFromKey(key)

	if err != nil {
		return fmt.Errorf("key conversion error: %v", err)
	}

	log.Printf("starting ssh server (%s)", ssh.FingerprintSHA256(signer.PublicKey()))

	srv.AddHostKey(signer)

	go c.listen(srv)

	return
}
