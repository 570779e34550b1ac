package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rcliao/convo-memory/internal/llm"
	"github.com/rcliao/convo-memory/internal/model"
	"github.com/rcliao/convo-memory/internal/window"
)

func reply(text string, err error) (llm.CompleterFunc, *int, *llm.Request) {
	calls := 0
	var last llm.Request
	return func(ctx context.Context, req llm.Request) (string, error) {
		calls++
		last = req
		return text, err
	}, &calls, &last
}

func TestExtract(t *testing.T) {
	c, calls, _ := reply("- Cat name is   Ongsim-i\n\n• allergy: chicken\n* medication: amoxicillin 50mg twice a day\n  indoor only  \n", nil)
	e := New(c, Options{}, zaptest.NewLogger(t))

	got := e.Extract(context.Background(), []window.Message{{Role: window.RoleUser, Content: "my cat Ongsim-i is allergic to chicken"}}, "noted")

	assert.Equal(t, 1, *calls)
	require.Len(t, got, 4)
	assert.Equal(t, "cat name is ongsim-i", got[0].Content)
	assert.Equal(t, model.TypeProfile, got[0].Type)
	assert.Equal(t, model.TypeAllergy, got[1].Type)
	assert.Equal(t, model.TypeMedication, got[2].Type)
	assert.Equal(t, "indoor only", got[3].Content)
	assert.Equal(t, model.TypeFact, got[3].Type)

	require.NotNil(t, got[1].Importance)
	assert.Equal(t, 0.90, *got[1].Importance)
	assert.Equal(t, 0.50, *got[3].Importance)
}

func TestExtractCapsCandidates(t *testing.T) {
	c, _, _ := reply("a\nb\nc\nd\ne\nf\ng", nil)
	got := New(c, Options{}, nil).Extract(context.Background(), nil, "")
	assert.Len(t, got, DefaultMaxCandidates)
}

func TestExtractUsesRecentTurnsOnly(t *testing.T) {
	c, _, last := reply("fact", nil)
	var turns []window.Message
	for i := 0; i < 10; i++ {
		turns = append(turns, window.Message{Role: window.RoleUser, Content: fmt.Sprintf("turn-%d", i)})
	}
	New(c, Options{}, nil).Extract(context.Background(), turns, "the reply")

	assert.NotContains(t, last.User, "turn-3")
	assert.Contains(t, last.User, "turn-4")
	assert.Contains(t, last.User, "turn-9")
	assert.Contains(t, last.User, "Latest reply:\nthe reply")
}

func TestExtractFailOpen(t *testing.T) {
	for name, c := range map[string]llm.Completer{
		"error": llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
			return "", errors.New("unavailable")
		}),
		"panic": llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
			panic("bad")
		}),
		"blank": llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
			return "\n - \n", nil
		}),
		"none": nil,
	} {
		t.Run(name, func(t *testing.T) {
			got := New(c, Options{}, zaptest.NewLogger(t)).Extract(context.Background(), nil, "reply")
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestClassifyPriority(t *testing.T) {
	tests := []struct {
		text string
		want model.Type
	}{
		{"avoid chocolate, allergy risk", model.TypeContraindication},
		{"금기: 초콜릿 섭취 금지", model.TypeContraindication},
		{"allergy to the new medication", model.TypeAllergy},
		{"알레르기: 닭고기", model.TypeAllergy},
		{"medication: amoxicillin for chronic kidney disease", model.TypeMedication},
		{"chronic kidney disease stage 2", model.TypeChronic},
		{"diet: low protein food", model.TypeDiet},
		{"cat name is ongsim-i", model.TypeProfile},
		{"weight 4.2 kg", model.TypeProfile},
		{"age 2, female", model.TypeProfile},
		{"indoor only", model.TypeFact},
		{"looked at the image gallery", model.TypeFact},
		{"prefers a dark background", model.TypeFact},
		{"asked for feedback on the plan", model.TypeFact},
		{"forgot her username again", model.TypeFact},
		{"amoxicillin 50mg twice a day", model.TypeMedication},
		{"feeding twice a day", model.TypeDiet},
		{"allergic to chicken", model.TypeAllergy},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestParseLines(t *testing.T) {
	assert.Equal(t, []string{"one", "two three"}, ParseLines("- One\r\n\t•  Two   Three\n\n", 5))
	assert.Equal(t, []string{"a"}, ParseLines("a\nb", 1))
	assert.Nil(t, ParseLines("   \n-", 5))
}
