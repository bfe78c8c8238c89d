// Package transfer moves files between the local machine and the remote
// evaluation service, one base64-encoded chunk per round trip.
package transfer

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/guseggert/evalshell/payload"
	"github.com/guseggert/evalshell/transport"
)

// ChunkSize is the number of file bytes moved per round trip, in both
// directions.
const ChunkSize = 65536

// RemoteError is a sentinel-prefixed reply from the remote side, surfaced
// verbatim and never retried.
type RemoteError struct {
	Reply string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error: %s", e.Reply)
}

// Result reports a completed transfer. For GET, Size is the total stated by
// the initial size query, even if the loop ended early; the actual byte
// count is visible in the debug log.
type Result struct {
	Path string
	Size int64
}

// Client drives chunked transfers over an existing connection. Like the
// connection itself, it must not be used concurrently.
type Client struct {
	Logger *zap.SugaredLogger
	Conn   *transport.Conn
	Window time.Duration
}

// Get fetches remotePath into localPath, defaulting to the remote base name.
// A sentinel or malformed size reply aborts before any file is created. A
// sentinel or undecodable chunk aborts mid-transfer and the partial local
// file is kept. An empty chunk reply ends the loop early without error.
func (c *Client) Get(remotePath, localPath string) (*Result, error) {
	if localPath == "" {
		localPath = path.Base(remotePath)
	}

	reply := strings.TrimSpace(string(c.Conn.RoundTrip([]byte(payload.StatSize(remotePath)), c.Window)))
	if strings.HasPrefix(reply, payload.ErrPrefix) {
		return nil, &RemoteError{Reply: reply}
	}
	total, err := strconv.ParseInt(reply, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unexpected size reply %q for %s", reply, remotePath)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", localPath, err)
	}
	defer f.Close()

	var offset int64
	for offset < total {
		n := int64(ChunkSize)
		if rem := total - offset; rem < n {
			n = rem
		}

		reply := strings.TrimSpace(string(c.Conn.RoundTrip([]byte(payload.ReadChunk(remotePath, offset, n)), c.Window)))
		if reply == "" {
			c.Logger.Debugw("empty chunk reply, ending transfer early", "offset", offset, "total", total)
			break
		}
		if strings.HasPrefix(reply, payload.ErrPrefix) {
			return nil, &RemoteError{Reply: reply}
		}

		raw, err := base64.StdEncoding.DecodeString(reply)
		if err != nil {
			return nil, fmt.Errorf("decoding chunk at offset %d: %w", offset, err)
		}
		if _, err := f.Write(raw); err != nil {
			return nil, fmt.Errorf("writing %s: %w", localPath, err)
		}

		// Advance by what actually arrived, not what was asked for, so a
		// short chunk shifts the next request instead of leaving a hole.
		offset += int64(len(raw))
		c.Logger.Debugw("chunk received", "offset", offset, "total", total)
	}

	return &Result{Path: localPath, Size: total}, nil
}

// Put streams localPath to remotePath, defaulting to the local base name.
// A missing local file aborts with no network traffic. The first chunk
// truncates the remote file, later chunks append, and every acknowledgment
// must begin with OK or the transfer stops where it is.
func (c *Client) Put(localPath, remotePath string) (*Result, error) {
	fi, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("local file: %w", err)
	}
	if remotePath == "" {
		remotePath = path.Base(localPath)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	buf := make([]byte, ChunkSize)
	sent := false
	var bytesSent int64
	for {
		n, rerr := f.Read(buf)
		if n > 0 || !sent {
			mode := payload.ModeAppend
			if !sent {
				mode = payload.ModeCreate
			}
			b64 := base64.StdEncoding.EncodeToString(buf[:n])

			ack := strings.TrimSpace(string(c.Conn.RoundTrip([]byte(payload.WriteChunk(remotePath, b64, mode)), c.Window)))
			if !strings.HasPrefix(ack, payload.OK) {
				return nil, &RemoteError{Reply: ack}
			}
			sent = true
			bytesSent += int64(n)
			c.Logger.Debugw("chunk acknowledged", "sent", bytesSent, "total", fi.Size())
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading %s: %w", localPath, rerr)
		}
	}

	return &Result{Path: remotePath, Size: fi.Size()}, nil
}
