// Package teletest provides an in-memory tele.Context for handler tests.
package teletest

import (
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"
)

// Sent is one outbound message captured by Context.
type Sent struct {
	What any
	Opts []any
}

// Text returns the message text, or the caption for documents.
func (s Sent) Text() string {
	switch v := s.What.(type) {
	case string:
		return v
	case *tele.Document:
		return v.Caption
	}
	return ""
}

// Markup returns the reply markup attached to the message, if any.
func (s Sent) Markup() *tele.ReplyMarkup {
	for _, o := range s.Opts {
		switch v := o.(type) {
		case *tele.ReplyMarkup:
			return v
		case *tele.SendOptions:
			if v != nil {
				return v.ReplyMarkup
			}
		}
	}
	return nil
}

// Context is a tele.Context backed by a fixed update. Methods not listed
// here panic through the nil embedded interface.
type Context struct {
	tele.Context

	upd tele.Update

	mu        sync.Mutex
	store     map[string]any
	sent      []Sent
	responses []*tele.CallbackResponse
	// SendErr, when set, fails every Send.
	SendErr error
}

func newContext(upd tele.Update) *Context {
	return &Context{upd: upd, store: make(map[string]any)}
}

// NewUser returns a private-chat user with the given id.
func NewUser(id int64) *tele.User {
	return &tele.User{ID: id, FirstName: "u", Username: "user"}
}

// NewText returns a context for a private text message from user.
func NewText(user *tele.User, text string) *Context {
	msg := &tele.Message{
		ID:     1,
		Sender: user,
		Chat:   &tele.Chat{ID: user.ID, Type: tele.ChatPrivate},
		Text:   text,
	}
	if strings.HasPrefix(text, "/") {
		if _, payload, ok := strings.Cut(text, " "); ok {
			msg.Payload = strings.TrimSpace(payload)
		}
	}
	return newContext(tele.Update{ID: 100, Message: msg})
}

// NewCallback returns a context for an inline button press carrying
// telebot's "\f<unique>|<data>" encoding.
func NewCallback(user *tele.User, unique, data string) *Context {
	raw := "\f" + unique
	if data != "" {
		raw += "|" + data
	}
	cb := &tele.Callback{
		ID:     "cb",
		Sender: user,
		Data:   raw,
		Message: &tele.Message{
			ID:   2,
			Chat: &tele.Chat{ID: user.ID, Type: tele.ChatPrivate},
		},
	}
	return newContext(tele.Update{ID: 101, Callback: cb})
}

func (c *Context) Update() tele.Update { return c.upd }

func (c *Context) Message() *tele.Message {
	if c.upd.Message != nil {
		return c.upd.Message
	}
	if c.upd.Callback != nil {
		return c.upd.Callback.Message
	}
	return nil
}

func (c *Context) Callback() *tele.Callback { return c.upd.Callback }

func (c *Context) Sender() *tele.User {
	switch {
	case c.upd.Callback != nil:
		return c.upd.Callback.Sender
	case c.upd.Message != nil:
		return c.upd.Message.Sender
	}
	return nil
}

func (c *Context) Chat() *tele.Chat {
	if m := c.Message(); m != nil {
		return m.Chat
	}
	return nil
}

func (c *Context) Recipient() tele.Recipient { return c.Chat() }

func (c *Context) Text() string {
	if m := c.Message(); m != nil {
		return m.Text
	}
	return ""
}

func (c *Context) Data() string {
	if c.upd.Callback != nil {
		return c.upd.Callback.Data
	}
	if c.upd.Message != nil {
		return c.upd.Message.Payload
	}
	return ""
}

func (c *Context) Args() []string {
	if c.upd.Message == nil || c.upd.Message.Payload == "" {
		return nil
	}
	return strings.Fields(c.upd.Message.Payload)
}

func (c *Context) Get(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store[key]
}

func (c *Context) Set(key string, val any) {
	c.mu.Lock()
	c.store[key] = val
	c.mu.Unlock()
}

func (c *Context) Send(what any, opts ...any) error {
	if c.SendErr != nil {
		return c.SendErr
	}
	c.mu.Lock()
	c.sent = append(c.sent, Sent{What: what, Opts: opts})
	c.mu.Unlock()
	return nil
}

func (c *Context) Reply(what any, opts ...any) error { return c.Send(what, opts...) }

func (c *Context) Edit(what any, opts ...any) error { return c.Send(what, opts...) }

func (c *Context) EditOrSend(what any, opts ...any) error { return c.Send(what, opts...) }

func (c *Context) EditOrReply(what any, opts ...any) error { return c.Send(what, opts...) }

func (c *Context) Respond(resp ...*tele.CallbackResponse) error {
	r := &tele.CallbackResponse{}
	if len(resp) > 0 && resp[0] != nil {
		r = resp[0]
	}
	c.mu.Lock()
	c.responses = append(c.responses, r)
	c.mu.Unlock()
	return nil
}

// SentMessages returns a copy of everything sent so far.
func (c *Context) SentMessages() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sent(nil), c.sent...)
}

// LastText returns the text of the latest message, or "".
func (c *Context) LastText() string {
	msgs := c.SentMessages()
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Text()
}

// Responses returns the callback answers recorded so far.
func (c *Context) Responses() []*tele.CallbackResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*tele.CallbackResponse(nil), c.responses...)
}
