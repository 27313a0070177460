package extract

import "regexp"

// Defaults used when no pattern matches.
const (
	UnknownPlatform = "Unknown OS Platform"
	UnknownBrowser  = "Unknown Browser"
)

type pattern struct {
	re    *regexp.Regexp
	label string
}

func patterns(pairs ...string) []pattern {
	out := make([]pattern, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, pattern{re: regexp.MustCompile(`(?i)` + pairs[i]), label: pairs[i+1]})
	}
	return out
}

// Order matters: the last matching entry wins.
var platformPatterns = patterns(
	`windows nt 10`, "Windows 10",
	`windows nt 6\.3`, "Windows 8.1",
	`windows nt 6\.2`, "Windows 8",
	`windows nt 6\.1`, "Windows 7",
	`windows nt 6\.0`, "Windows Vista",
	`windows nt 5\.2`, "Windows Server 2003/XP x64",
	`windows nt 5\.1`, "Windows XP",
	`windows xp`, "Windows XP",
	`windows nt 5\.0`, "Windows 2000",
	`windows me`, "Windows ME",
	`win98`, "Windows 98",
	`win95`, "Windows 95",
	`win16`, "Windows 3.11",
	`macintosh|mac os x`, "Mac OS X",
	`mac_powerpc`, "Mac OS 9",
	`linux`, "Linux",
	`ubuntu`, "Ubuntu",
	`iphone`, "iPhone",
	`ipod`, "iPod",
	`ipad`, "iPad",
	`android`, "Android",
	`blackberry`, "BlackBerry",
	`webos`, "Mobile",
)

var browserPatterns = patterns(
	`msie`, "Internet Explorer",
	`firefox`, "Firefox",
	`safari`, "Safari",
	`chrome`, "Chrome",
	`edge`, "Edge",
	`opera`, "Opera",
	`netscape`, "Netscape",
	`maxthon`, "Maxthon",
	`konqueror`, "Konqueror",
	`mobile`, "Handheld Browser",
)

// lastMatch tests every pattern and keeps the label of the last one that matched.
func lastMatch(list []pattern, s, def string) string {
	out := def
	for _, p := range list {
		if p.re.MatchString(s) {
			out = p.label
		}
	}
	return out
}

// Platform labels the client operating system.
func Platform(t Transport) string {
	return lastMatch(platformPatterns, t.Agent(), UnknownPlatform)
}

// Client labels the client software family.
func Client(t Transport) string {
	return lastMatch(browserPatterns, t.Agent(), UnknownBrowser)
}
