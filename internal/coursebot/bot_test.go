package coursebot

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/coursebots/internal/chat"
	"github.com/MrSnakeDoc/coursebots/internal/store/memory"
)

func TestJoinAndPart(t *testing.T) {
	e := newEnv(t)
	e.user("gal", "#a", "#b")
	b := e.bot("", "#a", "#b", "#a")

	channels, err := b.Channels(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"#a", "#b"}, channels)

	require.NoError(t, b.Part(e.ctx, "#a"))
	assert.ErrorIs(t, b.Part(e.ctx, "#a"), ErrNoSuchEntity)
	assert.ErrorIs(t, b.Part(e.ctx, "#never"), ErrNoSuchEntity)

	channels, err = b.Channels(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"#b"}, channels)
}

func TestJoinRejected(t *testing.T) {
	e := newEnv(t)
	e.user("gal")
	b := e.bot("")

	assert.ErrorIs(t, b.Join(e.ctx, "#missing"), ErrNotAuthorized, "only admins create channels")
	assert.ErrorIs(t, b.Join(e.ctx, "no-hash"), ErrNotAuthorized)

	channels, err := b.Channels(e.ctx)
	require.NoError(t, err)
	assert.Empty(t, channels)
}

func TestBeginCountArguments(t *testing.T) {
	e := newEnv(t)
	b := e.bot("")

	assert.ErrorIs(t, b.BeginCount(e.ctx, nil, nil, nil), ErrInvalidArgument)
	assert.ErrorIs(t, b.BeginCount(e.ctx, nil, ptr("("), nil), ErrInvalidArgument)

	_, err := b.Count(e.ctx, nil, ptr("x"), nil)
	assert.ErrorIs(t, err, ErrNoSuchEntity)
}

func TestCountFilters(t *testing.T) {
	tests := []struct {
		name  string
		regex *string
		media *chat.MediaType
		want  int64
	}{
		{name: "media only", media: ptr(chat.MediaText), want: 2},
		{name: "regex only", regex: ptr("hel+o"), want: 2},
		{name: "regex and media", regex: ptr("hel+o"), media: ptr(chat.MediaText), want: 1},
		{name: "regex matches whole message", regex: ptr("hel"), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			gal := e.user("gal", "#c")
			b := e.bot("", "#c")
			require.NoError(t, b.BeginCount(e.ctx, nil, tt.regex, tt.media))

			e.send(gal, "#c", "hello")
			e.sendMedia(gal, "#c", chat.MediaFile, "hello")
			e.send(gal, "#c", "bye")

			global, err := b.Count(e.ctx, nil, tt.regex, tt.media)
			require.NoError(t, err)
			assert.Equal(t, tt.want, global)

			inChannel, err := b.Count(e.ctx, ptr("#c"), tt.regex, tt.media)
			require.NoError(t, err)
			assert.Equal(t, tt.want, inChannel)
		})
	}
}

func TestCountRestartsAtZero(t *testing.T) {
	e := newEnv(t)
	gal := e.user("gal", "#c")
	b := e.bot("", "#c")
	media := ptr(chat.MediaText)

	require.NoError(t, b.BeginCount(e.ctx, nil, nil, media))
	e.send(gal, "#c", "one")
	require.NoError(t, b.BeginCount(e.ctx, nil, nil, media))
	e.send(gal, "#c", "two")

	n, err := b.Count(e.ctx, nil, nil, media)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestChannelCountOnly(t *testing.T) {
	e := newEnv(t)
	gal := e.user("gal", "#c", "#d")
	b := e.bot("", "#c", "#d")
	media := ptr(chat.MediaText)

	require.NoError(t, b.BeginCount(e.ctx, ptr("#c"), nil, media))
	e.send(gal, "#c", "x")
	e.send(gal, "#d", "x")

	n, err := b.Count(e.ctx, ptr("#c"), nil, media)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = b.Count(e.ctx, ptr("#d"), nil, media)
	assert.ErrorIs(t, err, ErrNoSuchEntity)
	_, err = b.Count(e.ctx, nil, nil, media)
	assert.ErrorIs(t, err, ErrNoSuchEntity)
}

func TestCountAfterPart(t *testing.T) {
	e := newEnv(t)
	gal := e.user("gal", "#c")
	b := e.bot("", "#c")
	media := ptr(chat.MediaText)
	require.NoError(t, b.BeginCount(e.ctx, nil, nil, media))

	for i := 0; i < 5; i++ {
		e.send(gal, "#c", "msg")
	}
	require.NoError(t, b.Part(e.ctx, "#c"))

	n, err := b.Count(e.ctx, ptr("#c"), nil, media)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = b.Count(e.ctx, nil, nil, media)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestCalculation(t *testing.T) {
	e := newEnv(t)
	gal := e.user("gal", "#c")
	b := e.bot("", "#c")
	_, err := b.SetCalculationTrigger(e.ctx, ptr("calc"))
	require.NoError(t, err)

	var h heard
	_, err = e.chat.AddListener(e.ctx, gal, h.listen)
	require.NoError(t, err)

	e.send(gal, "#c", "calc 2+3*4")
	e.send(gal, "#c", "calc [1+2]")
	e.send(gal, "#c", "calc 1/0")
	e.send(gal, "#c", "calculate 1+1")
	e.send(gal, "#c", "calc 2+ 20*3")

	assert.Equal(t, []string{"14", "62"}, h.from("#c@Anna0"))
}

func TestCalculationDisabled(t *testing.T) {
	e := newEnv(t)
	gal := e.user("gal", "#c")
	b := e.bot("", "#c")
	_, err := b.SetCalculationTrigger(e.ctx, ptr("calc"))
	require.NoError(t, err)
	prev, err := b.SetCalculationTrigger(e.ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, ptr("calc"), prev)

	_, err = b.SetCalculationTrigger(e.ctx, ptr(""))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	var h heard
	_, err = e.chat.AddListener(e.ctx, gal, h.listen)
	require.NoError(t, err)
	e.send(gal, "#c", "calc 1+1")
	assert.Empty(t, h.from("#c@Anna0"))
}

// readOnlyStore rejects writes while readOnly is set.
type readOnlyStore struct {
	*memory.Store
	readOnly atomic.Bool
}

func (s *readOnlyStore) Write(ctx context.Context, key, value []byte) error {
	if s.readOnly.Load() {
		return errors.New("store is read only")
	}
	return s.Store.Write(ctx, key, value)
}

func TestSetTriggerKeepsOldPhraseWhenStoreFails(t *testing.T) {
	kv := &readOnlyStore{Store: memory.NewStore()}
	e := newEnvOn(t, kv)
	gal := e.user("gal", "#c")
	b := e.bot("", "#c")
	_, err := b.SetCalculationTrigger(e.ctx, ptr("calc"))
	require.NoError(t, err)

	kv.readOnly.Store(true)
	_, err = b.SetCalculationTrigger(e.ctx, ptr("compute"))
	require.Error(t, err)
	assert.Equal(t, ptr("calc"), b.Trigger(TriggerCalculation))
	kv.readOnly.Store(false)

	var h heard
	_, err = e.chat.AddListener(e.ctx, gal, h.listen)
	require.NoError(t, err)
	e.send(gal, "#c", "compute 2+2")
	e.send(gal, "#c", "calc 3+3")
	assert.Equal(t, []string{"6"}, h.from("#c@"+b.Name()))
}

func TestSeenTime(t *testing.T) {
	e := newEnv(t)
	gal := e.user("gal", "#c")
	b := e.bot("", "#c")

	seen, err := b.SeenTime(e.ctx, "gal")
	require.NoError(t, err)
	assert.Nil(t, seen)

	e.send(gal, "#c", "first")
	last := e.send(gal, "#c", "second")
	require.NoError(t, b.Part(e.ctx, "#c"))
	e.send(gal, "#c", "unseen")

	seen, err = b.SeenTime(e.ctx, "someone else")
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.True(t, last.Created.Equal(*seen), "got %v, want %v", *seen, last.Created)
}

func TestKickedBot(t *testing.T) {
	e := newEnv(t)
	gal := e.user("gal", "#c")
	b := e.bot("", "#c")
	require.NoError(t, e.chat.ChannelKick(e.ctx, gal, "#c", b.Name()))

	_, err := b.MostActiveUser(e.ctx, "#c")
	assert.ErrorIs(t, err, ErrNoSuchEntity)
	_, err = b.RichestUser(e.ctx, "#c")
	assert.ErrorIs(t, err, ErrNoSuchEntity)
	_, err = b.RunSurvey(e.ctx, "#c", "q?", []string{"a"})
	assert.ErrorIs(t, err, ErrNoSuchEntity)

	assert.ErrorIs(t, b.Part(e.ctx, "#c"), ErrNoSuchEntity)
	channels, err := b.Channels(e.ctx)
	require.NoError(t, err)
	assert.Empty(t, channels)

	inChannel, err := e.bots.Bots(e.ctx, ptr("#c"))
	require.NoError(t, err)
	assert.Empty(t, inChannel)
}

func TestParseTriggerKind(t *testing.T) {
	for in, want := range map[string]TriggerKind{"calculation": TriggerCalculation, "calc": TriggerCalculation, "tip": TriggerTip} {
		got, err := ParseTriggerKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
		assert.NotEmpty(t, got.String())
	}
	_, err := ParseTriggerKind("vote")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCountLabelEncode(t *testing.T) {
	labels := []CountLabel{
		{Regex: ptr("a")},
		{Regex: ptr("a"), Media: ptr(chat.MediaText)},
		{Media: ptr(chat.MediaText)},
		{Channel: "#c", Regex: ptr("a")},
		{Channel: "#c|r1:a"},
		{Regex: ptr("|m-")},
		{Regex: ptr("")},
	}
	seen := make(map[string]int)
	for i, l := range labels {
		enc := l.Encode()
		if j, dup := seen[enc]; dup {
			t.Fatalf("labels %d and %d both encode to %q", j, i, enc)
		}
		seen[enc] = i
		assert.Equal(t, CountLabel{Regex: l.Regex, Media: l.Media}.Encode(), l.Filter().Encode())
	}
}
