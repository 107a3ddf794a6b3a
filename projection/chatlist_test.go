package projection

import (
	"fmt"
	"log/slog"
	"testing"

	"bookswap/domain"
	"bookswap/repositories"
	"bookswap/store/badgerstore"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	messages *repositories.MessageRepository
	profiles *repositories.ProfileRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	documents := badgerstore.New(db, slog.Default())
	f := fixture{
		messages: repositories.NewMessageRepository(documents, slog.Default()),
		profiles: repositories.NewProfileRepository(documents),
	}
	for _, id := range []string{"alice", "bob", "carol"} {
		require.NoError(t, f.profiles.Put(domain.Profile{
			ID: id, Name: id, ProfilePictureURL: "https://pics.example/" + id + ".png",
		}))
	}
	return f
}

func (f fixture) send(t *testing.T, sender, receiver, content string) {
	t.Helper()
	_, err := f.messages.Send(repositories.SendRequest{
		SenderID: sender, SenderName: sender, ReceiverID: receiver, Content: content,
	})
	require.NoError(t, err)
}

func TestListConversations_UnreadScopedPerPartner(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.send(t, "bob", "alice", "one")
	f.send(t, "bob", "alice", "two")
	f.send(t, "carol", "alice", "three")

	aggregator := NewChatListAggregator(f.messages, f.profiles, slog.Default())
	summaries, err := aggregator.ListConversations("alice")
	req.NoError(err)
	req.Len(summaries, 2)

	byPartner := map[string]domain.ConversationSummary{}
	for _, s := range summaries {
		byPartner[s.PartnerID] = s
	}
	req.Equal(2, byPartner["bob"].UnreadMessages, "bob's count must not include carol's messages")
	req.Equal(1, byPartner["carol"].UnreadMessages)
}

func TestListConversations_MostRecentFirst(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.send(t, "bob", "alice", "earlier")
	f.send(t, "carol", "alice", "later")

	aggregator := NewChatListAggregator(f.messages, f.profiles, slog.Default())
	summaries, err := aggregator.ListConversations("alice")
	req.NoError(err)
	req.Len(summaries, 2)
	req.Equal("carol", summaries[0].PartnerID)
	req.Equal("later", summaries[0].LastMessage)
	req.Equal("bob", summaries[1].PartnerID)
}

func TestListConversations_SoftDeleteHidesOnlyThatUser(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.send(t, "alice", "bob", "hi")
	key, err := domain.ConversationKey("alice", "bob")
	req.NoError(err)
	req.NoError(f.messages.SoftDeleteConversation(key, "alice"))

	aggregator := NewChatListAggregator(f.messages, f.profiles, slog.Default())

	aliceList, err := aggregator.ListConversations("alice")
	req.NoError(err)
	req.Empty(aliceList)

	bobList, err := aggregator.ListConversations("bob")
	req.NoError(err)
	req.Len(bobList, 1)
	req.Equal("alice", bobList[0].PartnerID)
}

// brokenProfiles fails lookups for one user to exercise the
// partial-failure tolerance of the listing.
type brokenProfiles struct {
	inner  ProfileResolver
	broken string
}

func (b brokenProfiles) Get(userID string) (domain.Profile, error) {
	if userID == b.broken {
		return domain.Profile{}, fmt.Errorf("profile service unreachable")
	}
	return b.inner.Get(userID)
}

func TestListConversations_SkipsConversationOnProfileFailure(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.send(t, "bob", "alice", "from bob")
	f.send(t, "carol", "alice", "from carol")

	aggregator := NewChatListAggregator(f.messages,
		brokenProfiles{inner: f.profiles, broken: "bob"}, slog.Default())

	summaries, err := aggregator.ListConversations("alice")
	req.NoError(err)
	req.Len(summaries, 1)
	req.Equal("carol", summaries[0].PartnerID)
}
