package handlers

import (
	"sentinel/internal/bus"
	"sentinel/internal/config"
	"sentinel/internal/events"
	"sentinel/internal/modeladapter"
	"sentinel/internal/retrieval"
)

// Set holds the constructed handlers, returned by RegisterAll so a caller
// (cmd/sentineld, or a test) can reach into an individual handler if needed.
type Set struct {
	Risk       *RiskHandler
	Compliance *ComplianceHandler
	Resilience *ResilienceHandler
	Sentiment  *SentimentHandler
	Privacy    *PrivacyHandler
	Knowledge  *KnowledgeHandler
	Assistant  *AssistantHandler
}

// RegisterAll constructs all seven agent handlers and subscribes each to its
// topic(s) through harness, per the handler table in spec.md §4.4.
func RegisterAll(b *bus.Bus, harness *Harness, index *retrieval.Index, adapter modeladapter.Adapter, cfg config.Config) (*Set, error) {
	set := &Set{
		Risk:       NewRiskHandler(index, adapter, cfg),
		Compliance: NewComplianceHandler(index, adapter, cfg),
		Resilience: NewResilienceHandler(),
		Sentiment:  NewSentimentHandler(adapter),
		Privacy:    NewPrivacyHandler(),
		Knowledge:  NewKnowledgeHandler(adapter, b, cfg.KnowledgeQuietPeriod(), cfg.ContextTTL()),
		Assistant:  NewAssistantHandler(index, adapter, cfg),
	}

	subs := []struct {
		topic   events.Topic
		name    string
		handler Func
	}{
		{events.TopicTransactionCreated, "risk_handler", set.Risk.Handle},
		{events.TopicRiskFlagged, "compliance_handler", set.Compliance.Handle},
		{events.TopicComplianceAction, "resilience_handler", set.Resilience.Handle},
		{events.TopicCustomerMessage, "sentiment_handler", set.Sentiment.Handle},
		{events.TopicLogLine, "privacy_handler", set.Privacy.Handle},
		{events.TopicRiskFlagged, "knowledge_handler", set.Knowledge.Handle},
		{events.TopicComplianceAction, "knowledge_handler", set.Knowledge.Handle},
		{events.TopicOpsAction, "knowledge_handler", set.Knowledge.Handle},
		{events.TopicOpsAlert, "knowledge_handler", set.Knowledge.Handle},
		{events.TopicPrivacyViolation, "knowledge_handler", set.Knowledge.Handle},
		{events.TopicUserQuery, "assistant_handler", set.Assistant.Handle},
	}

	for _, s := range subs {
		if _, err := b.Subscribe(s.topic, s.name, harness.Wrap(s.name, s.handler)); err != nil {
			return nil, err
		}
	}

	return set, nil
}
