package normalize

import "strings"

// TopicCode identifies one of the three enforcement focus topics.
type TopicCode string

const (
	TopicDUI       TopicCode = "DUI"
	TopicRedLight  TopicCode = "RED_LIGHT"
	TopicDangerous TopicCode = "DANGEROUS_DRIVING"
)

// ValidTopic reports whether code is a known topic code.
func ValidTopic(code string) bool {
	switch TopicCode(code) {
	case TopicDUI, TopicRedLight, TopicDangerous:
		return true
	}
	return false
}

// AllTopics lists the topic codes in display order.
func AllTopics() []TopicCode {
	return []TopicCode{TopicDUI, TopicRedLight, TopicDangerous}
}

// TopicFlags carries the three independent topic memberships of a ticket.
// They are not mutually exclusive.
type TopicFlags struct {
	DUI       bool
	RedLight  bool
	Dangerous bool
}

// topicRule is the static classification rule set for one topic: a violation
// matches when its code starts with any prefix or exact code, or its clause
// name contains any keyword.
type topicRule struct {
	prefixes []string
	codes    []string
	keywords []string
}

var topicRules = map[TopicCode]topicRule{
	TopicDUI: {
		prefixes: []string{"3501", "3503", "3504", "7302", "7303"},
		keywords: []string{"酒精", "酒駕", "酒測", "吸食毒品"},
	},
	TopicRedLight: {
		prefixes: []string{"5301", "5302"},
		codes:    []string{"6002030060", "6002030110"},
		keywords: []string{"闘紅燈", "紅燈越線", "紅燈右轉", "紅燈左轉", "紅燈迴轉"},
	},
	TopicDangerous: {
		prefixes: []string{"4000", "4301", "4304"},
		codes:    []string{"6201", "6203", "6204", "4501030010", "4501030020"},
		keywords: []string{"超速", "危險駕駛", "逼車", "肇事逃逸"},
	},
}

// ClassifyViolation maps a violation clause code and name onto topic flags.
// An empty code yields all-false.
func ClassifyViolation(code, name string) TopicFlags {
	code = strings.TrimSpace(code)
	if code == "" {
		return TopicFlags{}
	}

	return TopicFlags{
		DUI:       matchTopic(topicRules[TopicDUI], code, name),
		RedLight:  matchTopic(topicRules[TopicRedLight], code, name),
		Dangerous: matchTopic(topicRules[TopicDangerous], code, name),
	}
}

func matchTopic(rule topicRule, code, name string) bool {
	for _, p := range rule.prefixes {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	for _, c := range rule.codes {
		if strings.HasPrefix(code, c) {
			return true
		}
	}
	for _, k := range rule.keywords {
		if strings.Contains(name, k) {
			return true
		}
	}
	return false
}
