package chat

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/matthieukhl/loom/internal/catalog"
	"github.com/matthieukhl/loom/internal/intent"
	"github.com/matthieukhl/loom/internal/memory"
	"github.com/matthieukhl/loom/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type event struct {
	agent, action string
	message       any
}

type fakeRecorder struct{ events []event }

func (f *fakeRecorder) Record(_ context.Context, _, agent, action string, metadata map[string]any) {
	f.events = append(f.events, event{agent: agent, action: action, message: metadata["message"]})
}

type fakeMatcher struct {
	result catalog.Result
	err    error
	seen   []intent.Intent
}

func (f *fakeMatcher) Match(_ context.Context, in intent.Intent) (catalog.Result, error) {
	f.seen = append(f.seen, in)
	return f.result, f.err
}

type fakeCart struct {
	cleared []string
	err     error
}

func (f *fakeCart) Clear(_ context.Context, sessionID string) error {
	f.cleared = append(f.cleared, sessionID)
	return f.err
}

type fakeExecer struct {
	ensured []any
	err     error
}

func (f *fakeExecer) ExecContext(_ context.Context, _ string, args ...any) (sql.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.ensured = append(f.ensured, args[0])
	return driver.RowsAffected(1), nil
}

type stubGenerator struct{ reply string }

func (s stubGenerator) Complete(context.Context, string, map[string]any) (string, error) {
	return s.reply, nil
}

func (s stubGenerator) Model() string { return "stub" }

type fixture struct {
	svc      *Service
	recorder *fakeRecorder
	matcher  *fakeMatcher
	cart     *fakeCart
	sessions *fakeExecer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		recorder: &fakeRecorder{},
		matcher:  &fakeMatcher{result: catalog.Result{Relaxation: catalog.RelaxNone}},
		cart:     &fakeCart{},
		sessions: &fakeExecer{},
	}
	f.svc = NewService(Deps{
		Sessions: f.sessions,
		Resolver: intent.NewResolver(nil, 0, zap.NewNop()),
		Memory:   memory.NewLRUStore(100, time.Minute),
		Matcher:  f.matcher,
		Cart:     f.cart,
		Recorder: f.recorder,
		Logger:   zap.NewNop(),
	})
	return f
}

func shirt() *intent.ProductContext {
	return &intent.ProductContext{
		Name:      "Linen Office Shirt",
		Price:     decimal.NewFromInt(1499),
		Sizes:     []string{"S", "M", "L"},
		VariantID: 7,
		Quantity:  4,
	}
}

func candidates(n int) []models.Candidate {
	out := make([]models.Candidate, n)
	for i := range out {
		out[i] = models.Candidate{ID: int64(i + 1), Name: "Shirt", Quantity: 3}
	}
	return out
}

func TestHandle_AddToCart(t *testing.T) {
	f := newFixture(t)

	resp := f.svc.Handle(context.Background(), Request{SessionID: "s1", Message: "add 2 size M", Product: shirt()})

	require.NotNil(t, resp.Action)
	assert.Equal(t, Action{Type: ActionAddToCart, Size: "M", Quantity: 2, VariantID: 7}, *resp.Action)
	assert.NotEmpty(t, resp.Reply)
	assert.NotNil(t, resp.Products)

	require.Len(t, f.recorder.events, 2)
	assert.Equal(t, event{models.AgentCustomer, models.ActionInitiatesConversation, "add 2 size M"}, f.recorder.events[0])
	assert.Equal(t, models.AgentInventory, f.recorder.events[1].agent)
	assert.Equal(t, models.ActionResponse, f.recorder.events[1].action)
	assert.Equal(t, []any{"s1"}, f.sessions.ensured)
}

func TestHandle_AddWithoutProduct(t *testing.T) {
	f := newFixture(t)

	resp := f.svc.Handle(context.Background(), Request{SessionID: "s1", Message: "add to cart"})
	assert.Nil(t, resp.Action)
	assert.Equal(t, intent.ReplySelectFirst, resp.Reply)
}

func TestHandle_ProductQuestion(t *testing.T) {
	f := newFixture(t)

	resp := f.svc.Handle(context.Background(), Request{SessionID: "s1", Message: "what sizes do you have?", Product: shirt()})
	assert.Contains(t, resp.Reply, "Linen Office Shirt")
	assert.Equal(t, models.AgentRecommendation, f.recorder.events[1].agent)
}

func TestHandle_Browse(t *testing.T) {
	f := newFixture(t)
	f.matcher.result.Products = candidates(2)

	resp := f.svc.Handle(context.Background(), Request{SessionID: "s1", Message: "show me shirts"})

	assert.Equal(t, "Here are the best shirts I found for you.", resp.Reply)
	assert.Len(t, resp.Products, 2)
	assert.Nil(t, resp.Action)
	assert.Equal(t, models.AgentRecommendation, f.recorder.events[1].agent)
	assert.Equal(t, resp.Reply, f.recorder.events[1].message)
}

func TestHandle_BrowseRelaxedAddsNote(t *testing.T) {
	f := newFixture(t)
	f.matcher.result = catalog.Result{
		Products:   candidates(1),
		Relaxation: catalog.RelaxStyle,
		Note:       "Nothing matched the gym style, so I widened the search.",
	}

	resp := f.svc.Handle(context.Background(), Request{SessionID: "s1", Message: "gym blazers"})
	assert.Equal(t, "Here are the best blazers I found for you. Nothing matched the gym style, so I widened the search.", resp.Reply)
}

func TestHandle_BrowseWidenedCategoryUsesGenericLabel(t *testing.T) {
	f := newFixture(t)
	f.matcher.result = catalog.Result{
		Products:   candidates(1),
		Relaxation: catalog.RelaxCategoryAndStyle,
		Note:       "I couldn't find blazer in the beach style, so I dropped both and widened the search.",
	}

	resp := f.svc.Handle(context.Background(), Request{SessionID: "s1", Message: "beach blazers"})
	assert.Equal(t, "Here are the best items I found for you. I couldn't find blazer in the beach style, so I dropped both and widened the search.", resp.Reply)
}

func TestHandle_BrowseExactCarriesNote(t *testing.T) {
	f := newFixture(t)
	f.matcher.result = catalog.Result{
		Products:   candidates(2),
		Relaxation: catalog.RelaxNone,
		Note:       catalog.ExactNote,
	}

	resp := f.svc.Handle(context.Background(), Request{SessionID: "s1", Message: "show me shirts"})
	assert.Equal(t, "Here are the best shirts I found for you. "+catalog.ExactNote, resp.Reply)
}

func TestHandle_BrowseNoResults(t *testing.T) {
	f := newFixture(t)

	resp := f.svc.Handle(context.Background(), Request{SessionID: "s1", Message: "dresses under 300"})
	assert.Equal(t, "I couldn't find any exact matches for dresses. Try adjusting your search?", resp.Reply)
	assert.Empty(t, resp.Products)
	assert.NotNil(t, resp.Products)
}

func TestHandle_BrowseWithMission(t *testing.T) {
	f := newFixture(t)
	f.svc.resolver = intent.NewResolver(stubGenerator{
		reply: `{"intent":"browse","category":"shirts","mission":"office party"}`,
	}, 0, zap.NewNop())
	f.matcher.result.Products = candidates(1)

	resp := f.svc.Handle(context.Background(), Request{SessionID: "s1", Message: "something for the office party"})
	assert.Equal(t, "I've found some excellent shirts perfect for your office party!", resp.Reply)
}

// A follow-up price filter keeps the category browsed earlier in the session.
func TestHandle_MemoryCarriesCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.svc.Handle(ctx, Request{SessionID: "s1", Message: "show me shirts"})
	f.svc.Handle(ctx, Request{SessionID: "s1", Message: "under 1500"})
	f.svc.Handle(ctx, Request{SessionID: "s2", Message: "under 1500"})
	f.svc.Handle(ctx, Request{SessionID: "s1", Message: "summer outfit under 1500"})

	require.Len(t, f.matcher.seen, 4)
	assert.Equal(t, "shirt", f.matcher.seen[1].Category)
	require.NotNil(t, f.matcher.seen[1].MaxPrice)
	assert.Equal(t, "1500", f.matcher.seen[1].MaxPrice.String())
	assert.Equal(t, intent.GenericCategory, f.matcher.seen[2].Category, "other sessions are unaffected")
	assert.Equal(t, intent.GenericCategory, f.matcher.seen[3].Category, "outfits reset memory")
}

func TestHandle_CartCommands(t *testing.T) {
	tests := []struct {
		message string
		action  string
		reply   string
		cleared bool
	}{
		{"clear my cart", ActionRefreshCart, intent.ReplyClearCart, true},
		{"remove the blue shirt", ActionRefreshCart, intent.ReplyRemoveHint, false},
		{"checkout", ActionCheckout, intent.ReplyCheckout, false},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			f := newFixture(t)
			resp := f.svc.Handle(context.Background(), Request{SessionID: "s1", Message: tt.message})

			require.NotNil(t, resp.Action)
			assert.Equal(t, tt.action, resp.Action.Type)
			assert.Equal(t, tt.reply, resp.Reply)
			assert.Equal(t, tt.cleared, len(f.cart.cleared) == 1)
		})
	}
}

func TestHandle_GreetingAndUnknown(t *testing.T) {
	f := newFixture(t)

	resp := f.svc.Handle(context.Background(), Request{SessionID: "s1", Message: "hello"})
	assert.Equal(t, intent.ReplyCapabilities, resp.Reply)

	resp = f.svc.Handle(context.Background(), Request{SessionID: "s1", Message: "blargh"})
	assert.Equal(t, intent.ReplyUnknown, resp.Reply)
	assert.Empty(t, f.matcher.seen)
}

func TestHandle_InternalErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*fixture)
		message string
	}{
		{"session", func(f *fixture) { f.sessions.err = errors.New("db down") }, "hello"},
		{"matcher", func(f *fixture) { f.matcher.err = errors.New("db down") }, "show me shirts"},
		{"cart", func(f *fixture) { f.cart.err = errors.New("db down") }, "clear my cart"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			resp := f.svc.Handle(context.Background(), Request{SessionID: "s1", Message: tt.message})
			assert.Equal(t, ReplyTrouble, resp.Reply)
			assert.NotNil(t, resp.Products)
			assert.Nil(t, resp.Action)
		})
	}
}

func TestDisplayCategory(t *testing.T) {
	assert.Equal(t, "items", displayCategory(""))
	assert.Equal(t, "t-shirts", displayCategory("tshirt"))
	assert.Equal(t, "jeans", displayCategory("jeans"))
	assert.Equal(t, "dresses", displayCategory("dress"))
	assert.Equal(t, "blazers", displayCategory("blazer"))
}
