package responder

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live_server/core/domain"
	"live_server/pkg/apperr"
	"live_server/pkg/resilience"
)

func entryFor(intent domain.IntentID, emotion domain.EmotionID, msg string) domain.QueueEntry {
	return domain.QueueEntry{
		Comment: domain.Comment{
			ID: "tiktok_1", Platform: domain.PlatformTikTok, UserID: "u1",
			Username: "lan99", DisplayName: "Lan", Message: msg,
		},
		Classification: domain.ClassificationResult{IntentID: intent, Confidence: 0.9, Tier: domain.TierQuick},
		Emotion:        domain.EmotionResult{EmotionID: emotion, Confidence: 0.8},
	}
}

// =============================================================================
// Templates
// =============================================================================

func TestTemplateSubstitutesName(t *testing.T) {
	r := NewTemplateResponder(nil)
	resp, err := r.Dispatch(context.Background(), entryFor(domain.IntentStockInquiry, domain.EmotionNeutral, "còn hàng không"), domain.TierTemplate)
	require.NoError(t, err)
	assert.Equal(t, domain.TierTemplate, resp.Tier)
	assert.Contains(t, resp.Text, "Lan")
	assert.NotContains(t, resp.Text, "{name}")
	assert.Equal(t, string(domain.IntentStockInquiry), resp.Template)
}

func TestTemplateFallsBackForUnknownIntent(t *testing.T) {
	r := NewTemplateResponder(map[domain.IntentID][]string{})
	resp, err := r.Dispatch(context.Background(), entryFor(domain.IntentTradingQuestion, domain.EmotionNeutral, "?"), domain.TierFull)
	require.NoError(t, err)
	assert.Equal(t, "Cảm ơn Lan đã bình luận, shop trả lời ngay đây ạ!", resp.Text)
	assert.Equal(t, domain.TierTemplate, resp.Tier, "template always answers as tier 1")
}

func TestTemplateApologisesToUpsetViewer(t *testing.T) {
	r := NewTemplateResponder(nil)
	resp, err := r.Dispatch(context.Background(), entryFor(domain.IntentOrderStatus, domain.EmotionAngry, "đơn đâu"), domain.TierTemplate)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Text, "Shop xin lỗi vì để Lan chờ lâu."))

	resp, err = r.Dispatch(context.Background(), entryFor(domain.IntentComplaint, domain.EmotionAngry, "tệ quá"), domain.TierTemplate)
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(resp.Text, "Shop xin lỗi vì để"), "complaint templates already apologise")
}

func TestTemplatePickIsStable(t *testing.T) {
	r := NewTemplateResponder(nil)
	e := entryFor(domain.IntentGreeting, domain.EmotionHappy, "hi")
	first, _ := r.Dispatch(context.Background(), e, domain.TierTemplate)
	for i := 0; i < 5; i++ {
		again, _ := r.Dispatch(context.Background(), e, domain.TierTemplate)
		assert.Equal(t, first.Text, again.Text)
	}
}

// =============================================================================
// LLM
// =============================================================================

type fakeChat struct {
	calls atomic.Int32
	reply string
	err   error
	delay time.Duration
	last  openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls.Add(1)
	f.last = req
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return openai.ChatCompletionResponse{}, ctx.Err()
		}
	}
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.reply}}},
	}, nil
}

func TestLLMResponderBuildsPrompt(t *testing.T) {
	chat := &fakeChat{reply: "  Dạ Lan, áo còn size M ạ!  "}
	r := NewLLMResponder(chat, QuickConfig("mini"), nil, zerolog.Nop())

	resp, err := r.Dispatch(context.Background(), entryFor(domain.IntentSizeInquiry, domain.EmotionFrustrated, "size M còn ko"), domain.TierQuick)
	require.NoError(t, err)
	assert.Equal(t, "Dạ Lan, áo còn size M ạ!", resp.Text)
	assert.Equal(t, domain.TierQuick, resp.Tier)
	assert.Equal(t, "mini", resp.Model)

	require.Len(t, chat.last.Messages, 2)
	assert.Equal(t, 80, chat.last.MaxTokens)
	sys := chat.last.Messages[0].Content
	assert.Contains(t, sys, "SIZE_INQUIRY")
	assert.Contains(t, sys, "one short sentence")
	assert.Contains(t, sys, "upset")
	assert.Equal(t, "Lan: size M còn ko", chat.last.Messages[1].Content)
}

func TestLLMResponderGiftPrompt(t *testing.T) {
	e := entryFor(domain.IntentGeneral, domain.EmotionHappy, "")
	e.Comment.IsGift, e.Comment.GiftValue = true, 500
	assert.Equal(t, "Lan sent a gift worth 500. Thank them.", userPrompt(&e))
}

func TestLLMResponderEmptyCompletionFails(t *testing.T) {
	r := NewLLMResponder(&fakeChat{reply: "   "}, FullConfig(""), nil, zerolog.Nop())
	_, err := r.Dispatch(context.Background(), entryFor(domain.IntentGeneral, domain.EmotionNeutral, "hi"), domain.TierFull)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeDispatchFailed))
}

func TestLLMResponderDeadlinePassesThrough(t *testing.T) {
	r := NewLLMResponder(&fakeChat{reply: "late", delay: time.Second}, FullConfig(""), nil, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Dispatch(ctx, entryFor(domain.IntentGeneral, domain.EmotionNeutral, "hi"), domain.TierFull)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLLMResponderOpenCircuitShortCircuits(t *testing.T) {
	cfg := resilience.DefaultBreakerConfig("full")
	cfg.ConsecutiveFails = 2
	cfg.Timeout = time.Minute
	breaker := resilience.NewBreaker(cfg, zerolog.Nop())

	chat := &fakeChat{err: errors.New("provider down")}
	r := NewLLMResponder(chat, FullConfig(""), breaker, zerolog.Nop())
	e := entryFor(domain.IntentGeneral, domain.EmotionNeutral, "hi")

	for i := 0; i < 2; i++ {
		_, err := r.Dispatch(context.Background(), e, domain.TierFull)
		require.Error(t, err)
	}
	require.True(t, breaker.IsOpen())

	_, err := r.Dispatch(context.Background(), e, domain.TierFull)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeDispatchFailed))
	assert.Equal(t, int32(2), chat.calls.Load(), "open circuit does not reach the provider")
}

func TestLLMResponderAgainstHTTPServer(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Model: req.Model,
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "Chào Lan!"},
			}},
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient("sk-test", srv.URL+"/v1")
	r := NewLLMResponder(client, FullConfig("gpt-4o"), nil, zerolog.Nop())

	resp, err := r.Dispatch(context.Background(), entryFor(domain.IntentGreeting, domain.EmotionHappy, "hello"), domain.TierFull)
	require.NoError(t, err)
	assert.Equal(t, "Chào Lan!", resp.Text)
	assert.Equal(t, "Bearer sk-test", gotAuth)
}

// =============================================================================
// Router
// =============================================================================

func TestRouterMissingTierIsFailure(t *testing.T) {
	r := NewRouter().Handle(domain.TierTemplate, NewTemplateResponder(nil))
	assert.Equal(t, []domain.ResponseTier{domain.TierTemplate}, r.Tiers())

	_, err := r.Dispatch(context.Background(), entryFor(domain.IntentGeneral, domain.EmotionNeutral, "hi"), domain.TierFull)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeDispatchFailed))

	resp, err := r.Dispatch(context.Background(), entryFor(domain.IntentGreeting, domain.EmotionNeutral, "hi"), domain.TierTemplate)
	require.NoError(t, err)
	assert.Equal(t, domain.TierTemplate, resp.Tier)
}
