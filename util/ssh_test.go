// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package util_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/usbarmory/GoTEE-addin/util"
)

func echo(t *term.Terminal, line string) error {
	if line == "fail" {
		return errors.New("failed")
	}

	fmt.Fprintf(t, "echo %s\n", line)

	return nil
}

func newSigner(t *testing.T) ssh.Signer {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, err := ssh.NewSignerFromKey(key)
	require.NoError(t, err)

	return signer
}

func startConsole(t *testing.T, authorized []byte) string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	t.Cleanup(func() { listener.Close() })

	c := &util.Console{
		Handler:        echo,
		Listener:       listener,
		AuthorizedKeys: authorized,
	}

	require.NoError(t, c.Start())

	return listener.Addr().String()
}

func dial(addr string, auth ...ssh.AuthMethod) (*ssh.Client, error) {
	return ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            "root",
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	})
}

func TestConsoleExec(t *testing.T) {
	addr := startConsole(t, nil)

	client, err := dial(addr)
	require.NoError(t, err)
	defer client.Close()

	s, err := client.NewSession()
	require.NoError(t, err)

	out, err := s.Output("world")
	require.NoError(t, err)
	assert.Contains(t, string(out), "echo world")

	s, err = client.NewSession()
	require.NoError(t, err)

	out, err = s.Output("fail")

	var exit *ssh.ExitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 1, exit.ExitStatus())
	assert.Contains(t, string(out), "error: failed")
}

func TestConsoleAuthorizedKeys(t *testing.T) {
	signer := newSigner(t)
	addr := startConsole(t, ssh.MarshalAuthorizedKey(signer.PublicKey()))

	_, err := dial(addr)
	assert.Error(t, err)

	_, err = dial(addr, ssh.PublicKeys(newSigner(t)))
	assert.Error(t, err)

	client, err := dial(addr, ssh.PublicKeys(signer))
	require.NoError(t, err)
	defer client.Close()

	s, err := client.NewSession()
	require.NoError(t, err)

	out, err := s.Output("sync")
	require.NoError(t, err)
	assert.Contains(t, string(out), "echo sync")
}

func TestConsoleInvalidKeys(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	c := &util.Console{
		Handler:        echo,
		Listener:       listener,
		AuthorizedKeys: []byte("not a key"),
	}

	assert.Error(t, c.Start())
	assert.Nil(t, c.Terminal())
}
