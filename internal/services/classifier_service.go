package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"pibot/internal/models"
)

// classifierFallbackTimeout bounds the optional LLM yes/no call so a slow
// auxiliary model can never stall an event's pipeline
const classifierFallbackTimeout = 15 * time.Second

// CurrentInfoDetector is the optional LLM fallback: it answers whether the
// text needs current information (news, prices, live facts). Any error means
// "unknown" and the classifier fails open to chat.
type CurrentInfoDetector interface {
	NeedsCurrentInfo(ctx context.Context, text string) (bool, error)
}

// IntentRules holds the keyword configuration for the heuristic tiers.
// All matching is case-insensitive; Thai keywords compare as-is.
type IntentRules struct {
	ResetCommands   []string `yaml:"reset_commands"`
	FreeCommands    []string `yaml:"free_commands"`
	PremiumCommands []string `yaml:"premium_commands"`

	// Image triggers: prefixes are stripped from the front, keywords are
	// removed wherever they occur. What remains becomes the prompt.
	ImagePrefixes []string `yaml:"image_prefixes"`
	ImageKeywords []string `yaml:"image_keywords"`
	DefaultPrompt string   `yaml:"default_prompt"`

	// Topics that date quickly and should go through web search
	SearchKeywords []string `yaml:"search_keywords"`
}

// DefaultIntentRules returns the built-in rule set used when no intents file
// is configured
func DefaultIntentRules() IntentRules {
	return IntentRules{
		ResetCommands:   []string{"reset", "รีเซ็ต", "เริ่มใหม่"},
		FreeCommands:    []string{"free", "แพ็กฟรี", "แพ็คเกจฟรี"},
		PremiumCommands: []string{"premium", "แพ็กพรีเมียม", "แพ็คเกจพรีเมียม"},

		ImagePrefixes: []string{"รูป ", "รูป:", "/img ", "/image "},
		ImageKeywords: []string{"วาดรูป", "วาดภาพ", "สร้างรูป", "สร้างภาพ", "draw me", "draw a", "generate an image"},
		DefaultPrompt: "a cute cat in thai style",

		SearchKeywords: []string{
			"ข่าว", "ราคา", "หุ้น", "หวย", "ผลบอล", "อากาศ", "วันนี้", "ล่าสุด", "ตอนนี้",
			"news", "price", "stock", "weather", "today", "latest", "score",
		},
	}
}

// LoadIntentRules reads a rule set from a YAML file. Missing lists fall back
// to the built-in defaults so a partial file only overrides what it names.
func LoadIntentRules(path string) (IntentRules, error) {
	rules := DefaultIntentRules()

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("failed to read intents file: %w", err)
	}

	var loaded IntentRules
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return rules, fmt.Errorf("failed to parse intents YAML: %w", err)
	}

	if len(loaded.ResetCommands) > 0 {
		rules.ResetCommands = loaded.ResetCommands
	}
	if len(loaded.FreeCommands) > 0 {
		rules.FreeCommands = loaded.FreeCommands
	}
	if len(loaded.PremiumCommands) > 0 {
		rules.PremiumCommands = loaded.PremiumCommands
	}
	if len(loaded.ImagePrefixes) > 0 {
		rules.ImagePrefixes = loaded.ImagePrefixes
	}
	if len(loaded.ImageKeywords) > 0 {
		rules.ImageKeywords = loaded.ImageKeywords
	}
	if loaded.DefaultPrompt != "" {
		rules.DefaultPrompt = loaded.DefaultPrompt
	}
	if len(loaded.SearchKeywords) > 0 {
		rules.SearchKeywords = loaded.SearchKeywords
	}

	return rules, nil
}

// ClassifierService decides which capability handles an inbound text message.
// Classification is an ordered list of pure keyword rules; only when every
// rule misses does it consult the optional LLM detector, and a detector
// failure falls open to chat so an auxiliary outage never blocks users.
type ClassifierService struct {
	mu       sync.RWMutex
	rules    IntentRules
	detector CurrentInfoDetector // nil disables the fallback tier
}

// NewClassifierService creates a classifier with the given rules. detector
// may be nil.
func NewClassifierService(rules IntentRules, detector CurrentInfoDetector) *ClassifierService {
	return &ClassifierService{rules: rules, detector: detector}
}

// ReloadRules swaps the rule set (used by the intents file watcher)
func (s *ClassifierService) ReloadRules(rules IntentRules) {
	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()
	log.Printf("🔄 [CLASSIFIER] Intent rules reloaded (%d image keywords, %d search keywords)",
		len(rules.ImageKeywords), len(rules.SearchKeywords))
}

// Classify maps trimmed, non-empty text to an intent decision. Evaluation
// order is fixed: reserved commands, image triggers, search keywords, LLM
// fallback, chat. First match wins.
func (s *ClassifierService) Classify(ctx context.Context, text string) models.IntentDecision {
	s.mu.RLock()
	rules := s.rules
	s.mu.RUnlock()

	if matchesAny(text, rules.ResetCommands) {
		return models.IntentDecision{Kind: models.IntentReset}
	}
	if matchesAny(text, rules.FreeCommands) {
		return models.IntentDecision{Kind: models.IntentSelectPlanFree}
	}
	if matchesAny(text, rules.PremiumCommands) {
		return models.IntentDecision{Kind: models.IntentSelectPlanPremium}
	}

	if prompt, ok := extractImagePrompt(text, rules); ok {
		return models.IntentDecision{Kind: models.IntentImage, Payload: prompt}
	}

	for _, kw := range rules.SearchKeywords {
		if _, _, found := foldIndex(text, kw); found {
			return models.IntentDecision{Kind: models.IntentWebSearch, Payload: text}
		}
	}

	// The keyword tier already said no; the detector catches phrasings the
	// list missed. Errors and timeouts fall open to chat.
	if s.detector != nil {
		fctx, cancel := context.WithTimeout(ctx, classifierFallbackTimeout)
		defer cancel()

		needs, err := s.detector.NeedsCurrentInfo(fctx, text)
		if err != nil {
			log.Printf("⚠️  [CLASSIFIER] Fallback detector failed, defaulting to chat: %v", err)
		} else if needs {
			return models.IntentDecision{Kind: models.IntentWebSearch, Payload: text}
		}
	}

	return models.IntentDecision{Kind: models.IntentChat, Payload: text}
}

// matchesAny reports whether text equals any command, case-insensitively
func matchesAny(text string, commands []string) bool {
	for _, cmd := range commands {
		if strings.EqualFold(text, cmd) {
			return true
		}
	}
	return false
}

// extractImagePrompt applies the image trigger rules. It returns the input
// minus the matched trigger text, trimmed; an empty remainder yields the
// configured default prompt.
// All matching works on the original string's byte offsets: lowercasing is
// not byte-length-preserving, so indices from a lowered copy cannot be used
// to slice the input.
func extractImagePrompt(text string, rules IntentRules) (string, bool) {
	for _, prefix := range rules.ImagePrefixes {
		if end, ok := foldPrefixEnd(text, prefix); ok {
			return promptOrDefault(text[end:], rules.DefaultPrompt), true
		}
	}

	for _, kw := range rules.ImageKeywords {
		if start, end, found := foldIndex(text, kw); found {
			return promptOrDefault(text[:start]+text[end:], rules.DefaultPrompt), true
		}
	}

	return "", false
}

// foldPrefixEnd reports whether s starts with prefix, case-insensitively,
// and returns the byte offset in s just past the match
func foldPrefixEnd(s, prefix string) (int, bool) {
	end := 0
	for _, pr := range prefix {
		r, size := utf8.DecodeRuneInString(s[end:])
		if size == 0 || unicode.ToLower(r) != unicode.ToLower(pr) {
			return 0, false
		}
		end += size
	}
	return end, true
}

// foldIndex returns the byte offsets [start, end) in s of the first
// case-insensitive occurrence of substr
func foldIndex(s, substr string) (int, int, bool) {
	if substr == "" {
		return 0, 0, false
	}
	for i := 0; i < len(s); {
		if n, ok := foldPrefixEnd(s[i:], substr); ok {
			return i, i + n, true
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return 0, 0, false
}

func promptOrDefault(prompt, fallback string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return fallback
	}
	return prompt
}
