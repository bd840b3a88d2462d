package tracker

import "strings"

// PlatformUnknown is assigned when no path pattern matches.
const PlatformUnknown = "Unknown"

type platformPattern struct {
	platform     string
	pathSegments []string
	launcherExes []string
}

// platformPatterns is ordered; classification takes the first match.
var platformPatterns = []platformPattern{
	{
		platform:     "Steam (PC)",
		pathSegments: []string{`steamapps\common\`},
		launcherExes: []string{"Steam.exe"},
	},
	{
		platform:     "Epic Games",
		pathSegments: []string{`Epic Games\`},
		launcherExes: []string{"EpicGamesLauncher.exe"},
	},
	{
		platform:     "GOG Galaxy",
		pathSegments: []string{`GOG Galaxy\Games\`, `GOG Games\`},
		launcherExes: []string{"GalaxyClient.exe"},
	},
	{
		platform:     "Battle.net",
		pathSegments: []string{`World of Warcraft\`, `Battle.net\`},
		launcherExes: []string{"Battle.net.exe"},
	},
	{
		platform:     "EA app",
		pathSegments: []string{`EA Games\`, `Electronic Arts\EA Desktop\EA Desktop\`},
		launcherExes: []string{"EADesktop.exe"},
	},
	{
		platform:     "Origin",
		pathSegments: []string{`Origin Games\`},
		launcherExes: []string{"Origin.exe"},
	},
	{
		platform:     "Ubisoft Connect",
		pathSegments: []string{`Ubisoft\Ubisoft Game Launcher\`},
		launcherExes: []string{"UbisoftConnect.exe"},
	},
	{
		platform:     "Riot",
		pathSegments: []string{`Riot Games\`},
		launcherExes: []string{"RiotClientServices.exe"},
	},
	{
		platform:     "Rockstar",
		pathSegments: []string{`Rockstar Games\`},
		launcherExes: []string{"Launcher.exe", "RockstarService.exe"},
	},
}

// noiseNames are helper processes that live next to games but are never the
// game itself.
var noiseNames = []string{"unitycrashhandler", "crashreporter", "launcher"}

// DetectPlatform classifies an executable path against the pattern table.
// First match wins; no match yields PlatformUnknown.
func DetectPlatform(path string) string {
	for _, p := range platformPatterns {
		for _, seg := range p.pathSegments {
			if strings.Contains(path, seg) {
				return p.platform
			}
		}
	}
	return PlatformUnknown
}

// MatchesKnownPlatform reports whether the path sits under any known game
// library directory.
func MatchesKnownPlatform(path string) bool {
	return DetectPlatform(path) != PlatformUnknown
}

// IsLauncher reports whether a process name is a store/launcher executable
// rather than a game.
func IsLauncher(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range platformPatterns {
		for _, exe := range p.launcherExes {
			base := strings.ToLower(strings.TrimSuffix(exe, ".exe"))
			if strings.Contains(lower, base) {
				return true
			}
		}
	}
	return false
}

// IsNoise reports whether a process name matches a known non-game helper.
func IsNoise(name string) bool {
	lower := strings.ToLower(name)
	for _, n := range noiseNames {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

// DisplayName derives a human title for a process: the window title when
// present, else the executable name without its extension.
func DisplayName(windowTitle, exeName string) string {
	if t := strings.TrimSpace(windowTitle); t != "" {
		return t
	}
	return strings.TrimSuffix(exeName, ".exe")
}
