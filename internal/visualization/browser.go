package visualization

import (
	"fmt"
	"os/exec"
	"runtime"
)

// OpenBrowser opens target, a URL or file path, in the default browser
// without waiting for it.
func OpenBrowser(target string) error {
	argv, err := browserCommand(runtime.GOOS, target)
	if err != nil {
		return err
	}
	return exec.Command(argv[0], argv[1:]...).Start()
}

func browserCommand(goos, target string) ([]string, error) {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return []string{"xdg-open", target}, nil
	case "darwin":
		return []string{"open", target}, nil
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler", target}, nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}
