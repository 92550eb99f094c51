// Package client is a line-oriented terminal client for the relay.
//
// Lines typed by the user become frames: "/choose <id>" sends user_choose,
// anything else is sent as a new_message. Frames from the server are printed
// one per line as "[type] value".
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"pairchat/internal/config"
	"pairchat/internal/message"
)

const chooseCommand = "/choose"

// Frame turns one input line into the frame to send. Blank lines yield nil.
func Frame(line string) []byte {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if rest, ok := strings.CutPrefix(line, chooseCommand); ok && (rest == "" || rest[0] == ' ') {
		return message.Text(message.TypeUserChoose, strings.TrimSpace(rest))
	}

	return message.Text(message.TypeNewMessage, line)
}

// Run copies lines from in to conn and frames from conn to out until in is
// exhausted, conn fails, or ctx is cancelled. The server's framing decides
// whether outbound frames get a trailing newline.
func Run(ctx context.Context, conn io.ReadWriteCloser, in io.Reader, out io.Writer, framing config.Framing) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	readErr := make(chan error, 1)
	go func() {
		readErr <- printFrames(conn, out)
	}()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		frame := Frame(scanner.Text())
		if frame == nil {
			continue
		}

		if framing == config.FramingLine {
			frame = append(frame, '\n')
		}

		if _, err := conn.Write(frame); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	_ = conn.Close()

	if err := <-readErr; err != nil && ctx.Err() == nil {
		return err
	}

	return nil
}

// printFrames decodes the stream as consecutive JSON documents, which covers
// both raw and line framing.
func printFrames(r io.Reader, out io.Writer) error {
	dec := json.NewDecoder(r)

	for {
		var msg message.Message
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) || isClosedConn(err) {
				return nil
			}

			return fmt.Errorf("receive: %w", err)
		}

		fmt.Fprintf(out, "[%s] %s\n", msg.Type, render(msg.Value))
	}
}

func render(value json.RawMessage) string {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s
	}

	return string(value)
}

func isClosedConn(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
