package mail

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"
)

// fakeSMTP accepts one session and records the DATA payload.
func fakeSMTP(t *testing.T, rejectRcpt bool) (host string, port int, got <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 fake ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			verb := strings.ToUpper(strings.Fields(line + " x")[0])
			switch verb {
			case "EHLO", "HELO":
				_ = tp.PrintfLine("250 fake")
			case "MAIL", "NOOP", "RSET":
				_ = tp.PrintfLine("250 ok")
			case "RCPT":
				if rejectRcpt {
					_ = tp.PrintfLine("550 no such user")
					continue
				}
				_ = tp.PrintfLine("250 ok")
			case "DATA":
				_ = tp.PrintfLine("354 go ahead")
				body, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				out <- string(body)
				_ = tp.PrintfLine("250 queued")
			case "QUIT":
				_ = tp.PrintfLine("221 bye")
				return
			default:
				_ = tp.PrintfLine("502 unknown")
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port, out
}

func TestSMTPSenderDelivers(t *testing.T) {
	t.Parallel()
	host, port, got := fakeSMTP(t, false)

	s := &SMTPSender{Host: host, Port: port, From: "no-reply@affworld.test"}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.Send(ctx, Message{
		To:      "ann@x.com",
		Subject: "Password Reset Request",
		Body:    "Reset here: https://app.test/forgot-password/abc",
	})
	require.NoError(t, err)

	payload := <-got
	require.Contains(t, payload, "ann@x.com")
	require.Contains(t, payload, "Message-ID:")
	require.Contains(t, payload, "Subject: Password Reset Request")
	require.Contains(t, payload, "https://app.test/forgot-password/abc")
}

func TestSMTPSenderRecipientRejected(t *testing.T) {
	t.Parallel()
	host, port, _ := fakeSMTP(t, true)

	s := &SMTPSender{Host: host, Port: port, From: "no-reply@affworld.test"}
	err := s.Send(context.Background(), Message{To: "ghost@x.com", Subject: "s", Body: "b"})
	require.Error(t, err)

	var sendErr *gomail.SendError
	require.True(t, errors.As(err, &sendErr), "got %v", err)
	require.Equal(t, gomail.ErrSMTPRcptTo, sendErr.Reason)
}

func TestSMTPSenderUnreachable(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	s := &SMTPSender{Host: "127.0.0.1", Port: port, From: "no-reply@affworld.test"}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.Error(t, s.Send(ctx, Message{To: "ann@x.com", Subject: "s", Body: "b"}))
}

func TestMessageRejectsHeaderInjection(t *testing.T) {
	t.Parallel()

	err := LogSender{}.Send(context.Background(), Message{To: "ann@x.com\r\nBcc: all@x.com", Subject: "s"})
	require.ErrorIs(t, err, ErrHeaderInjection)

	err = (&SMTPSender{Host: "127.0.0.1", Port: 1}).Send(context.Background(), Message{To: "a@x.com", Subject: "a\nb"})
	require.ErrorIs(t, err, ErrHeaderInjection)
}

func TestMessageHeaders(t *testing.T) {
	t.Parallel()

	s := &SMTPSender{From: "no-reply@affworld.test"}
	m, err := s.message(Message{To: "ann@x.com", Subject: "Zurücksetzen", Body: "line"})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)

	r := textproto.NewReader(bufio.NewReader(&buf))
	hdr, err := r.ReadMIMEHeader()
	require.NoError(t, err)
	require.Contains(t, hdr.Get("From"), "no-reply@affworld.test")
	require.Contains(t, hdr.Get("To"), "ann@x.com")
	require.NotEmpty(t, hdr.Get("Message-ID"))
	require.NotEmpty(t, hdr.Get("Date"))
	require.Contains(t, hdr.Get("Content-Type"), "text/plain")
	require.True(t, strings.HasPrefix(hdr.Get("Subject"), "=?UTF-8?"), "non-ASCII subject is encoded: %q", hdr.Get("Subject"))
}

func TestMessageRejectsBadAddress(t *testing.T) {
	t.Parallel()

	_, err := (&SMTPSender{From: "not an address"}).message(Message{To: "ann@x.com", Subject: "s"})
	require.Error(t, err)

	_, err = (&SMTPSender{From: "no-reply@affworld.test"}).message(Message{To: "ann@", Subject: "s"})
	require.Error(t, err)
}
