package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const maxCategories = 3

// Classifier maps free text onto the command catalog using the model.
// Every response is parsed strictly; anything else is a *ClassificationError.
type Classifier struct {
	llm *OpenAIClient
}

func NewClassifier(llm *OpenAIClient) *Classifier {
	return &Classifier{llm: llm}
}

func (c *Classifier) Classify(ctx context.Context, text string, catalog []Intent) (string, error) {
	var resp struct {
		Intent *string `json:"intent"`
	}
	raw, err := c.call(ctx, "classify", ClassifyPrompt, map[string]any{
		"text":    text,
		"intents": catalog,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Intent == nil {
		return "", &ClassificationError{Op: "classify", Raw: raw, Err: errors.New(`missing "intent"`)}
	}

	name := strings.ToLower(strings.TrimSpace(*resp.Intent))
	name = strings.TrimPrefix(name, "/")
	if name == IntentNone {
		return IntentNone, nil
	}
	if !lo.ContainsBy(catalog, func(i Intent) bool { return i.Name == name }) {
		return "", &ClassificationError{Op: "classify", Raw: raw, Err: fmt.Errorf("unknown intent %q", name)}
	}
	return name, nil
}

func (c *Classifier) ExtractArgs(ctx context.Context, text, intent string) (Args, error) {
	var resp struct {
		Note       string `json:"note"`
		Topic      string `json:"topic"`
		NewContent string `json:"new_content"`
		Category   string `json:"category"`
	}
	if _, err := c.call(ctx, "extract args", ExtractArgsPrompt, map[string]any{
		"text":   text,
		"intent": intent,
	}, &resp); err != nil {
		return Args{}, err
	}

	return Args{
		Note:       strings.TrimSpace(resp.Note),
		Topic:      strings.TrimSpace(resp.Topic),
		NewContent: strings.TrimSpace(resp.NewContent),
		Category:   strings.TrimSpace(resp.Category),
	}, nil
}

// MatchTopic returns the ids of candidates related to topic. Ids the model
// made up are dropped.
func (c *Classifier) MatchTopic(ctx context.Context, topic string, candidates []Candidate) ([]int64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var resp struct {
		IDs *[]int64 `json:"ids"`
	}
	raw, err := c.call(ctx, "match topic", MatchTopicPrompt, map[string]any{
		"topic": topic,
		"notes": candidates,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.IDs == nil {
		return nil, &ClassificationError{Op: "match topic", Raw: raw, Err: errors.New(`missing "ids"`)}
	}

	known := lo.SliceToMap(candidates, func(cd Candidate) (int64, struct{}) { return cd.ID, struct{}{} })
	ids := lo.Uniq(lo.Filter(*resp.IDs, func(id int64, _ int) bool {
		_, ok := known[id]
		return ok
	}))
	if dropped := len(*resp.IDs) - len(ids); dropped > 0 {
		c.llm.log.Warn("match topic returned unknown or repeated ids", zap.Int("dropped", dropped))
	}
	return ids, nil
}

func (c *Classifier) SuggestCategories(ctx context.Context, content string) ([]string, error) {
	var resp struct {
		Categories *[]string `json:"categories"`
	}
	raw, err := c.call(ctx, "suggest categories", SuggestCategoriesPrompt, map[string]any{
		"note": content,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Categories == nil {
		return nil, &ClassificationError{Op: "suggest categories", Raw: raw, Err: errors.New(`missing "categories"`)}
	}

	out := lo.Compact(lo.Map(*resp.Categories, func(s string, _ int) string { return strings.TrimSpace(s) }))
	if len(out) > maxCategories {
		out = out[:maxCategories]
	}
	return out, nil
}

func (c *Classifier) call(ctx context.Context, op, prompt string, input any, out any) (string, error) {
	b, err := json.Marshal(input)
	if err != nil {
		return "", &ClassificationError{Op: op, Err: err}
	}

	raw, err := c.llm.ask(ctx, prompt, string(b))
	if err != nil {
		return "", &ClassificationError{Op: op, Err: err}
	}

	if err := decodeStrict(raw, out); err != nil {
		return raw, &ClassificationError{Op: op, Raw: raw, Err: err}
	}
	return raw, nil
}

// decodeStrict accepts exactly one JSON object with no unknown fields.
// A surrounding markdown code fence is tolerated.
func decodeStrict(raw string, out any) error {
	body := stripFence(raw)
	if !strings.HasPrefix(body, "{") {
		return errors.New("response is not a JSON object")
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after JSON object")
	}
	return nil
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
