// Package chat routes shopper messages: the intent is resolved, adjusted by
// conversation memory and dispatched to the catalog or cart.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matthieukhl/loom/internal/audit"
	"github.com/matthieukhl/loom/internal/catalog"
	"github.com/matthieukhl/loom/internal/database"
	"github.com/matthieukhl/loom/internal/intent"
	"github.com/matthieukhl/loom/internal/memory"
	"github.com/matthieukhl/loom/internal/models"
	"github.com/matthieukhl/loom/internal/sessions"
	"go.uber.org/zap"
)

// Client actions returned with a reply.
const (
	ActionAddToCart   = models.ActionAddToCart
	ActionRefreshCart = "REFRESH_CART"
	ActionCheckout    = "CHECKOUT"
)

// ReplyTrouble is sent whenever handling fails internally.
const ReplyTrouble = "I'm having trouble connecting."

const replyQuestion = "It looks like a great product!"

// Request is one inbound shopper message.
type Request struct {
	SessionID string                 `json:"sessionId" binding:"required"`
	Message   string                 `json:"message" binding:"required"`
	Product   *intent.ProductContext `json:"contextProduct,omitempty"`
}

// Action is a command the client UI should carry out.
type Action struct {
	Type      string `json:"type"`
	Size      string `json:"size,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
	VariantID int64  `json:"variantId,omitempty"`
}

// Response is the conversational answer to a Request.
type Response struct {
	Reply    string             `json:"reply"`
	Products []models.Candidate `json:"products"`
	Action   *Action            `json:"action"`
}

// Matcher finds products for a browse intent.
type Matcher interface {
	Match(ctx context.Context, in intent.Intent) (catalog.Result, error)
}

// CartClearer empties a session's cart.
type CartClearer interface {
	Clear(ctx context.Context, sessionID string) error
}

// Service is the message orchestrator.
type Service struct {
	sessions database.Execer
	resolver *intent.Resolver
	memory   memory.Store
	matcher  Matcher
	cart     CartClearer
	recorder audit.Recorder
	logger   *zap.Logger
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Sessions database.Execer
	Resolver *intent.Resolver
	Memory   memory.Store
	Matcher  Matcher
	Cart     CartClearer
	Recorder audit.Recorder
	Logger   *zap.Logger
}

func NewService(d Deps) *Service {
	s := &Service{
		sessions: d.Sessions,
		resolver: d.Resolver,
		memory:   d.Memory,
		matcher:  d.Matcher,
		cart:     d.Cart,
		recorder: d.Recorder,
		logger:   d.Logger,
	}
	if s.resolver == nil {
		s.resolver = intent.NewResolver(nil, 0, d.Logger)
	}
	if s.recorder == nil {
		s.recorder = audit.Nop{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Handle answers one message. It never fails: internal errors are logged and
// turned into ReplyTrouble.
func (s *Service) Handle(ctx context.Context, req Request) Response {
	resp, err := s.handle(ctx, req)
	if err != nil {
		s.logger.Error("failed to handle chat message", zap.String("session_id", req.SessionID), zap.Error(err))
		return Response{Reply: ReplyTrouble, Products: []models.Candidate{}}
	}
	return resp
}

func (s *Service) handle(ctx context.Context, req Request) (Response, error) {
	if s.sessions != nil {
		if err := sessions.Ensure(ctx, s.sessions, req.SessionID); err != nil {
			return Response{}, err
		}
	}
	s.recorder.Record(ctx, req.SessionID, models.AgentCustomer, models.ActionInitiatesConversation, map[string]any{
		"message": req.Message,
	})

	in := s.resolver.Resolve(ctx, req.Message, req.Product)
	memory.Apply(ctx, s.memory, s.logger, req.SessionID, &in)
	s.logger.Debug("intent resolved",
		zap.String("session_id", req.SessionID),
		zap.String("intent", string(in.Kind)),
		zap.String("category", in.Category),
		zap.String("source", string(in.Source)))

	agent, resp, err := s.dispatch(ctx, req, in)
	if err != nil {
		return Response{}, err
	}

	s.recorder.Record(ctx, req.SessionID, agent, models.ActionResponse, map[string]any{
		"message": resp.Reply,
	})
	return resp, nil
}

// dispatch returns the agent answering the intent and its response.
func (s *Service) dispatch(ctx context.Context, req Request, in intent.Intent) (string, Response, error) {
	resp := Response{Products: []models.Candidate{}}

	switch {
	case in.Kind == intent.KindAddToCart && req.Product != nil:
		qty := in.Quantity
		if qty < 1 {
			qty = 1
		}
		size := in.Size
		if size == "" {
			size = models.UniversalSize
		}
		resp.Reply = orDefault(in.Reply, fmt.Sprintf("Adding %d × size %s to your cart!", qty, size))
		resp.Action = &Action{Type: ActionAddToCart, Size: size, Quantity: qty, VariantID: req.Product.VariantID}
		return models.AgentInventory, resp, nil

	case in.Kind == intent.KindProductQuestion && req.Product != nil:
		resp.Reply = orDefault(in.Reply, replyQuestion)
		return models.AgentRecommendation, resp, nil

	case in.Kind == intent.KindClearCart:
		if s.cart != nil {
			if err := s.cart.Clear(ctx, req.SessionID); err != nil {
				return "", Response{}, err
			}
		}
		resp.Reply = orDefault(in.Reply, intent.ReplyClearCart)
		resp.Action = &Action{Type: ActionRefreshCart}
		return models.AgentInventory, resp, nil

	case in.Kind == intent.KindRemoveItem:
		resp.Reply = orDefault(in.Reply, intent.ReplyRemoveHint)
		resp.Action = &Action{Type: ActionRefreshCart}
		return models.AgentSales, resp, nil

	case in.Kind == intent.KindCheckout:
		resp.Reply = orDefault(in.Reply, intent.ReplyCheckout)
		resp.Action = &Action{Type: ActionCheckout}
		return models.AgentSales, resp, nil

	case in.Kind == intent.KindBrowse || (in.Category != "" && in.Kind != intent.KindAddToCart):
		return s.browse(ctx, in)

	case in.Kind == intent.KindGreeting:
		resp.Reply = intent.ReplyCapabilities
		return models.AgentSales, resp, nil
	}

	resp.Reply = orDefault(in.Reply, intent.ReplyUnknown)
	return models.AgentSales, resp, nil
}

func (s *Service) browse(ctx context.Context, in intent.Intent) (string, Response, error) {
	resp := Response{Products: []models.Candidate{}}
	if s.matcher == nil {
		return "", Response{}, errors.New("no product matcher configured")
	}

	res, err := s.matcher.Match(ctx, in)
	if err != nil {
		return "", Response{}, err
	}

	label := displayCategory(in.Category)
	if len(res.Products) == 0 {
		resp.Reply = fmt.Sprintf("I couldn't find any exact matches for %s. Try adjusting your search?", label)
		return models.AgentRecommendation, resp, nil
	}
	if res.CategoryWidened() {
		label = displayCategory(intent.GenericCategory)
	}

	resp.Products = res.Products
	if in.Mission != "" {
		resp.Reply = fmt.Sprintf("I've found some excellent %s perfect for your %s!", label, in.Mission)
	} else {
		resp.Reply = fmt.Sprintf("Here are the best %s I found for you.", label)
	}
	if res.Note != "" {
		resp.Reply += " " + res.Note
	}
	return models.AgentRecommendation, resp, nil
}

// displayCategory turns a canonical category into the plural shoppers read.
func displayCategory(category string) string {
	switch category {
	case "", intent.GenericCategory:
		return intent.GenericCategory
	case "tshirt":
		return "t-shirts"
	case "dress":
		return "dresses"
	}
	if strings.HasSuffix(category, "s") {
		return category
	}
	return category + "s"
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) != "" {
		return s
	}
	return def
}
