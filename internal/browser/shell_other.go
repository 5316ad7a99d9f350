//go:build !windows

package browser

func shellOpen(string) error {
	return ErrUnsupportedURL
}
