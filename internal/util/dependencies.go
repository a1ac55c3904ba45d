package util

import (
	"fmt"
	"log"
	"os/exec"
)

// CheckDependencies verifies the external binaries the bot shells out to.
// yt-dlp and ffmpeg are required; a missing optional dependency only
// disables the feature that needs it.
func CheckDependencies(headless bool) error {
	required := []string{"yt-dlp", "ffmpeg"}
	for _, name := range required {
		path, err := exec.LookPath(name)
		if err != nil {
			return fmt.Errorf("%s not found in PATH", name)
		}
		log.Printf("[Deps] %s found: %s", name, path)
	}

	if headless {
		for _, name := range []string{"google-chrome", "chromium", "chromium-browser"} {
			if path, err := exec.LookPath(name); err == nil {
				log.Printf("[Deps] browser found: %s", path)
				return nil
			}
		}
		return fmt.Errorf("no Chromium-based browser found for the headless cookie strategy")
	}
	return nil
}
