package sidechannel

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	ws "github.com/gorilla/websocket"
)

// IncomeKind classifies a Subscriber.Read result the way a long-lived
// reconnecting client needs to: a clean close, a transport failure, or a
// decoded event.
type IncomeKind int

const (
	ReadOK IncomeKind = iota
	ConnClosed
	ReadFailure
)

// Income is one Read outcome.
type Income struct {
	Kind  IncomeKind
	Event Envelope
	Err   error
}

// Subscriber is a reconnecting websocket client for the phoneme-timing
// side channel — the renderer-side counterpart to Hub.
type Subscriber struct {
	url     string
	reconn  uint
	timeout time.Duration
	conn    *ws.Conn
}

// NewSubscriber dials url immediately. reconn bounds how many times
// TryReconn will retry before giving up (0 means unlimited).
func NewSubscriber(url string, reconn uint, timeout time.Duration) (*Subscriber, error) {
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("sidechannel: dial: %w", err)
	}
	return &Subscriber{url: url, reconn: reconn, timeout: timeout, conn: conn}, nil
}

// Read blocks for the next phoneme-timing event, classifying the outcome
// so callers can distinguish a clean shutdown from a transport error
// worth reconnecting over.
func (s *Subscriber) Read() Income {
	if s.conn == nil {
		return Income{Kind: ConnClosed, Err: errors.New("sidechannel: not connected")}
	}

	_, data, err := s.conn.ReadMessage()
	if err != nil {
		if wsIsClosed(err) {
			return Income{Kind: ConnClosed, Err: err}
		}
		return Income{Kind: ReadFailure, Err: err}
	}

	var ev Envelope
	if err := json.Unmarshal(data, &ev); err != nil {
		return Income{Kind: ReadFailure, Err: err}
	}
	return Income{Kind: ReadOK, Event: ev}
}

// TryReconn retries dialing s.url with a short backoff until it succeeds
// or the retry budget (if any) is exhausted.
func (s *Subscriber) TryReconn() error {
	var attempt uint
	for {
		if s.reconn > 0 && attempt >= s.reconn {
			return fmt.Errorf("sidechannel: exhausted %d reconnect attempts", s.reconn)
		}
		attempt++

		conn, _, err := ws.DefaultDialer.Dial(s.url, nil)
		if err == nil {
			s.conn = conn
			return nil
		}

		time.Sleep(backoff(attempt, s.timeout))
	}
}

func backoff(attempt uint, base time.Duration) time.Duration {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	d := base * time.Duration(attempt)
	const maxBackoff = 10 * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func wsIsClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure,
	)
}

func (s *Subscriber) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
