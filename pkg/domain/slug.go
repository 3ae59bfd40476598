package domain

import (
	"math/rand/v2"
	"strings"
)

var (
	adjectives = []string{
		"amber", "bold", "brave", "bright", "calm", "clever", "cosmic", "crisp", "daring", "eager",
		"fancy", "gentle", "golden", "happy", "hidden", "humble", "jolly", "lively", "lucky", "mellow",
		"misty", "nimble", "quiet", "rapid", "rustic", "silent", "sleek", "snowy", "sunny", "swift",
		"tidy", "vivid", "wild", "witty", "young", "zesty",
	}
	nouns = []string{
		"anchor", "badger", "beacon", "canyon", "cedar", "comet", "coral", "falcon", "forest", "garden",
		"harbor", "island", "lantern", "meadow", "meteor", "orchid", "otter", "panda", "pebble", "phoenix",
		"planet", "prairie", "quartz", "river", "rocket", "sailor", "summit", "thunder", "tiger", "valley",
		"voyage", "willow", "wizard", "zephyr",
	}
)

// NewProjectName returns a random two-word kebab-case name such as
// "quiet-river".
func NewProjectName() string {
	return strings.Join([]string{
		adjectives[rand.IntN(len(adjectives))],
		nouns[rand.IntN(len(nouns))],
	}, "-")
}
