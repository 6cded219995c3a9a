package fetcher

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/jmylchreest/aptledger/internal/logger"
)

// chromeCandidates lists binary names and install paths per platform, most
// specific first. headless-shell covers the chromedp/headless-shell image
// the scheduled sync usually runs in.
func chromeCandidates(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"google-chrome",
			"chromium",
		}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			"chrome.exe",
		}
	default:
		return []string{
			"/headless-shell/headless-shell",
			"headless-shell",
			"google-chrome-stable",
			"google-chrome",
			"chromium",
			"chromium-browser",
			"/snap/bin/chromium",
		}
	}
}

// lookPath resolves a candidate: absolute paths must exist as regular files,
// bare names are searched on PATH.
func lookPath(candidate string) (string, bool) {
	if filepath.IsAbs(candidate) {
		info, err := os.Stat(candidate)
		return candidate, err == nil && info.Mode().IsRegular()
	}
	path, err := exec.LookPath(candidate)
	return path, err == nil
}

// FindChromePath returns the first Chrome/Chromium binary found for this
// platform, or "" to leave the lookup to chromedp.
func FindChromePath() string {
	return findChrome(chromeCandidates(runtime.GOOS))
}

func findChrome(candidates []string) string {
	for _, c := range candidates {
		if path, ok := lookPath(c); ok {
			logger.Debug("found Chrome binary", "candidate", c, "path", path)
			return path
		}
	}
	logger.Warn("no Chrome binary found, relying on chromedp's default lookup")
	return ""
}
