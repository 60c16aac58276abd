package bump

import (
	"context"
	"errors"
	"net/http"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/json"
	"github.com/disgoorg/snowflake/v2"
)

// Discord JSON error codes the engine cares about.
const (
	jsonErrUnknownChannel     = 10003
	jsonErrUnknownMessage     = 10008
	jsonErrMissingAccess      = 50001
	jsonErrMissingPermissions = 50013
)

// DiscordGateway implements ThreadGateway over the disgo REST client.
type DiscordGateway struct {
	client bot.Client
}

func NewDiscordGateway(client bot.Client) *DiscordGateway {
	return &DiscordGateway{client: client}
}

func (g *DiscordGateway) FetchThread(ctx context.Context, threadID string) (Thread, error) {
	id, err := snowflake.Parse(threadID)
	if err != nil {
		return nil, &GatewayError{Kind: KindNotFound, Op: "fetch thread", Err: err}
	}

	ch, err := g.client.Rest().GetChannel(id, rest.WithCtx(ctx))
	if err != nil {
		return nil, &GatewayError{Kind: classify(err), Op: "fetch thread", Err: err}
	}

	thread, ok := ch.(discord.GuildThread)
	if !ok {
		return nil, &GatewayError{Kind: KindNotFound, Op: "fetch thread", Err: errors.New("channel is not a thread")}
	}
	return &discordThread{client: g.client, thread: thread}, nil
}

type discordThread struct {
	client bot.Client
	thread discord.GuildThread
}

func (t *discordThread) Meta() ThreadMeta {
	meta := ThreadMeta{
		AutoArchiveMinutes: int(t.thread.ThreadMetadata.AutoArchiveDuration),
	}
	// Discord reports no last-activity timestamp directly; the creation time
	// of the newest message is the closest signal it exposes.
	if id := t.thread.LastMessageID(); id != nil {
		meta.LastActivityAt = id.Time()
	}
	return meta
}

func (t *discordThread) Archived() bool { return t.thread.ThreadMetadata.Archived }

func (t *discordThread) Locked() bool { return t.thread.ThreadMetadata.Locked }

func (t *discordThread) Unarchive(ctx context.Context) error {
	_, err := t.client.Rest().UpdateChannel(t.thread.ID(), discord.GuildThreadUpdate{
		Archived: json.Ptr(false),
	}, rest.WithCtx(ctx))
	if err != nil {
		return &GatewayError{Kind: classify(err), Op: "unarchive thread", Err: err}
	}
	return nil
}

func (t *discordThread) Unlock(ctx context.Context) error {
	_, err := t.client.Rest().UpdateChannel(t.thread.ID(), discord.GuildThreadUpdate{
		Locked: json.Ptr(false),
	}, rest.WithCtx(ctx))
	if err != nil {
		return &GatewayError{Kind: classify(err), Op: "unlock thread", Err: err}
	}
	return nil
}

func (t *discordThread) Send(ctx context.Context, content string) (Message, error) {
	msg, err := t.client.Rest().CreateMessage(t.thread.ID(), discord.MessageCreate{
		Content: content,
		// No @everyone/@here/role/user pings, ever.
		AllowedMentions: &discord.AllowedMentions{Parse: []discord.AllowedMentionType{}},
	}, rest.WithCtx(ctx))
	if err != nil {
		return nil, &GatewayError{Kind: classify(err), Op: "send bump", Err: err}
	}
	return &discordMessage{client: t.client, channelID: t.thread.ID(), messageID: msg.ID}, nil
}

type discordMessage struct {
	client    bot.Client
	channelID snowflake.ID
	messageID snowflake.ID
}

func (m *discordMessage) Delete(ctx context.Context) error {
	if err := m.client.Rest().DeleteMessage(m.channelID, m.messageID, rest.WithCtx(ctx)); err != nil {
		return &GatewayError{Kind: classify(err), Op: "delete bump message", Err: err}
	}
	return nil
}

// classify maps a disgo REST failure onto the engine's error taxonomy.
func classify(err error) ErrorKind {
	var restErr rest.Error
	if !errors.As(err, &restErr) {
		return KindUnknown
	}
	switch int(restErr.Code) {
	case jsonErrUnknownChannel, jsonErrUnknownMessage, jsonErrMissingAccess:
		return KindNotFound
	case jsonErrMissingPermissions:
		return KindPermission
	}
	if restErr.Response != nil && restErr.Response.StatusCode == http.StatusTooManyRequests {
		return KindRateLimited
	}
	return KindUnknown
}
