package support

import "math/rand/v2"

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// RandomUserAgent picks one of agents, or DefaultUserAgent when none are set.
func RandomUserAgent(agents []string) string {
	if len(agents) == 0 {
		return DefaultUserAgent
	}
	return agents[rand.IntN(len(agents))]
}
