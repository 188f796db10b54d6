package convstate

import (
	"strings"
	"time"

	"github.com/ShowfloorAI/showfloor-mvp/engine/domain"
)

// stageScanOrder lists the stages a trigger can move the conversation to,
// ascending. Greeting is never a target; sessions start there.
var stageScanOrder = []domain.Stage{
	domain.StageDiscovery,
	domain.StageBrowsing,
	domain.StageComparing,
	domain.StageDeepDive,
	domain.StageTradeIn,
	domain.StageFinancing,
	domain.StageObjection,
	domain.StageCommitment,
	domain.StageHandoff,
}

// stageTriggers are case-insensitive substrings that pull the conversation
// toward a stage. A match moves forward only; trade-in and financing may be
// (re)entered from anywhere.
var stageTriggers = map[domain.Stage][]string{
	domain.StageDiscovery: {
		"looking for", "i need", "i want", "in the market", "shopping for",
		"interested in",
	},
	domain.StageBrowsing: {
		"show me", "what do you have", "what have you got", "do you have any",
		"got any", "on the lot", "in stock", "what's available",
	},
	domain.StageComparing: {
		"compare", "difference between", "versus", " vs ", "which one",
		"better than", "or should i",
	},
	domain.StageDeepDive: {
		"tell me more", "more about", "specs", "what's the mileage", "warranty",
		"carfax", "service history", "how many miles", "fuel economy", "mpg",
	},
	domain.StageTradeIn: {
		"trade", "my current car", "my current vehicle", "what's my car worth",
		"owe on",
	},
	domain.StageFinancing: {
		"financ", "monthly payment", "a month", "per month", "apr",
		"interest rate", "down payment", "credit score", "lease", "loan",
	},
	domain.StageObjection: {
		"too expensive", "too much", "out of my", "not sure", "have to think",
		"think about it", "sleep on it", "talk to my", "not convinced",
		"i don't know",
	},
	domain.StageCommitment: {
		"i'll take", "let's do it", "where do i sign", "paperwork",
		"write it up", "test drive", "run the numbers", "make this work",
	},
	domain.StageHandoff: {
		"manager", "finance office", "salesperson", "sales person",
		"appointment", "come in and", "schedule a",
	},
}

// Interest triggers, checked hot > warm > cooling; first family with a
// match wins the turn.
var (
	hotTriggers = []string{
		"i'll take it", "i'll take this", "i love", "love it", "love this",
		"where do i sign", "write it up", "test drive", "apprais",
		"buy it today", "take it home", "my car worth",
	}
	warmTriggers = []string{
		"i like", "sounds good", "looks good", "that's nice", "pretty nice",
		"i'm interested", "im interested", "tell me more", "not bad",
	}
	coolingTriggers = []string{
		"not sure", "not really", "don't love", "dont love", "too expensive",
		"out of my range", "have to think", "think about it", "sleep on it",
		"not a fan", "don't like", "dont like", "i'll pass",
	}
)

// testDriveTriggers and appraisalTriggers force interest to hot and mark
// the test-drive key moment.
var (
	testDriveTriggers = []string{"test drive", "test-drive", "drive it today", "take it for a spin"}
	appraisalTriggers = []string{"apprais", "my car worth", "my trade worth", "value my"}
)

// Sentiment keyword families. Each family increments its counter at most
// once per turn.
var (
	frustrationTriggers = []string{
		"frustrat", "annoying", "annoyed", "ridiculous", "waste of time",
		"wasting my time", "are you kidding", "fed up", "sick of",
		"taking forever", "getting nowhere",
	}
	excitementTriggers = []string{
		"can't wait", "cant wait", "excited", "awesome", "amazing",
		"fantastic", "incredible", "dream car", "love love",
	}
)

func containsAny(lower string, triggers []string) bool {
	for _, t := range triggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// advanceStage walks the stages in order and applies each stage's trigger
// rule against the running value, so a single utterance that touches several
// stages lands on the furthest one it legitimately reaches.
func (s *State) advanceStage(lower string) {
	for _, stage := range stageScanOrder {
		if !containsAny(lower, stageTriggers[stage]) {
			continue
		}
		if stage.Index() > s.Stage.Index() || (stage.Reenterable() && stage != s.Stage) {
			s.Stage = stage
		}
	}
	// Nobody greets twice. One full exchange moves the floor to discovery.
	if s.Stage == domain.StageGreeting && s.MessageCount >= 1 {
		s.Stage = domain.StageDiscovery
	}
}

// updateInterest applies the hot > warm > cooling trigger families, the
// three-distinct-vehicles escalation, and the test-drive/appraisal override.
func (s *State) updateInterest(lower string, now time.Time) {
	switch {
	case containsAny(lower, hotTriggers):
		s.InterestLevel = domain.InterestHot
	case containsAny(lower, warmTriggers):
		s.InterestLevel = domain.InterestWarm
	case containsAny(lower, coolingTriggers):
		s.InterestLevel = domain.InterestCooling
	}

	if s.InterestLevel == domain.InterestCold && len(s.DiscussedVehicles) >= 3 {
		s.InterestLevel = domain.InterestWarm
	}

	if containsAny(lower, testDriveTriggers) {
		s.InterestLevel = domain.InterestHot
		s.addMoment(MomentTestDriveInterest, "", now)
	} else if containsAny(lower, appraisalTriggers) {
		s.InterestLevel = domain.InterestHot
	}
}

// updateSentiment bumps the frustration/excitement counters and relabels.
// Labels start mild (concerned/positive) and harden (frustrated/excited)
// past the second hit; frustration outranks excitement when both exist.
func (s *State) updateSentiment(lower string) {
	if containsAny(lower, frustrationTriggers) {
		s.FrustrationCount++
	}
	if containsAny(lower, excitementTriggers) {
		s.ExcitementCount++
	}

	switch {
	case s.FrustrationCount > 2:
		s.Sentiment = domain.SentimentFrustrated
	case s.FrustrationCount > 0:
		s.Sentiment = domain.SentimentConcerned
	case s.ExcitementCount > 2:
		s.Sentiment = domain.SentimentExcited
	case s.ExcitementCount > 0:
		s.Sentiment = domain.SentimentPositive
	}
}
