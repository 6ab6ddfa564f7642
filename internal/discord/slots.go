package discord

import "strconv"

// maxIPCSlots is how many numbered endpoints a Discord client may listen on.
// A second running client takes the next free slot.
const maxIPCSlots = 10

// Endpoint name prefixes for the stable, Canary and PTB clients. Windows
// clients all share the first.
const (
	prefixStable = "discord-ipc"
	prefixCanary = "discordcanary-ipc"
	prefixPTB    = "discordptb-ipc"
)

// slotNames expands prefix into one endpoint name per slot.
func slotNames(prefix string) []string {
	names := make([]string, maxIPCSlots)
	for i := range names {
		names[i] = prefix + "-" + strconv.Itoa(i)
	}
	return names
}
