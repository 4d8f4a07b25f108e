//go:build !linux

package dirtscan

// O_NOATIME is Linux-only; elsewhere opens carry no extra flag.
const openNoATime = 0
