// Package crisis scans outgoing message text for phrases that may
// indicate a mental-health emergency and carries the helpline list
// surfaced to the user when a scan hits. The scanner is a pure function
// of the text; it knows nothing about rooms or the message store.
package crisis

import "strings"

var keywords = []string{
	"suicide", "kill myself", "end my life", "want to die", "self harm",
	"hurt myself", "harming myself", "cutting myself", "overdose",
	"no reason to live", "can't go on", "can't take it anymore",
	"better off dead", "hopeless", "giving up", "emergency",
	"immediate help", "crisis", "unsafe",
}

// Scan returns the crisis phrases found in content, case-insensitive
// substring match. An empty result means no indicator.
func Scan(content string) []string {
	lower := strings.ToLower(content)
	var hits []string
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}

// Detected reports whether content contains any crisis phrase.
func Detected(content string) bool {
	return len(Scan(content)) > 0
}

// Resource is one support helpline shown alongside a crisis hit.
type Resource struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Phone       string `json:"phone"`
}

var resources = []Resource{
	{
		Name:        "Befrienders KL",
		Description: "24-hour emotional support helpline in Malaysia",
		Phone:       "03-7956-8145",
	},
	{
		Name:        "Malaysia Mental Health Association",
		Description: "Support and resources for mental health issues",
		Phone:       "03-2780-6803",
	},
	{
		Name:        "SOLS Health",
		Description: "Mental health services including therapy and counseling",
		Phone:       "018-999-2830",
	},
	{
		Name:        "Talian Kasih Helpline",
		Description: "24-hour national crisis helpline by Malaysian Ministry of Women",
		Phone:       "15999",
	},
	{
		Name:        "Befrienders Penang",
		Description: "Emotional support helpline for northern Malaysia",
		Phone:       "04-281-5161",
	},
}

// Resources returns the helpline list in display order.
func Resources() []Resource {
	out := make([]Resource, len(resources))
	copy(out, resources)
	return out
}
