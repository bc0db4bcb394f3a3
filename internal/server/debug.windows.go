//go:build windows

package server

func listenEnableDebugLogging() {}
