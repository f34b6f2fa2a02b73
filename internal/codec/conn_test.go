package codec

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpscodec-svr/internal/session"
)

type failingWriter struct{ calls int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls++
	return 0, errors.New("broken pipe")
}

func TestConnReplyWithoutPath(t *testing.T) {
	c := NewConn(context.Background(), session.NewRegistry(session.Options{}), nil, nil, nil)
	assert.False(t, c.CanReply())
	c.Reply([]byte{0x01})
	assert.NoError(t, c.WriteErr())
}

func TestConnReplyWriteError(t *testing.T) {
	w := &failingWriter{}
	c := NewConn(context.Background(), session.NewRegistry(session.Options{}), nil, w, nil)
	c.Reply([]byte{0x01})
	c.Reply([]byte{0x02})
	require.Error(t, c.WriteErr())
	assert.Equal(t, 1, w.calls)
}

func TestConnBindAndClose(t *testing.T) {
	reg := session.NewRegistry(session.Options{})
	var out bytes.Buffer
	c := NewConn(context.Background(), reg, nil, &out, nil)

	s1, err := c.Bind("111111111111111")
	require.NoError(t, err)
	again, err := c.Bind("111111111111111")
	require.NoError(t, err)
	assert.Same(t, s1, again)
	assert.Equal(t, 1, reg.Len())

	_, err = c.Bind("222222222222222")
	require.NoError(t, err)
	_, ok := reg.Lookup("111111111111111")
	assert.False(t, ok, "previous session released")

	c.Close()
	assert.Equal(t, 0, reg.Len())
	assert.Nil(t, c.Session())
}

func TestDropped(t *testing.T) {
	assert.True(t, Dropped(ErrChecksum))
	assert.True(t, Dropped(ErrUnknownDevice))
	assert.False(t, Dropped(errors.New("other")))
}
