package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bentcrank-plotter/pkg/kinematics"
)

// The autosave block sits at the end of the file. Everything from
// saveMarker on is owned by SaveKinematics and rewritten on each save.
const (
	saveMarker = autosavePrefix + " <---------------------- SAVE_CONFIG ---------------------->"
	saveNotice = autosavePrefix + " DO NOT EDIT THIS BLOCK OR BELOW. The contents are auto-generated."
)

// SaveKinematics writes cfg into the autosave block of the file at path,
// replacing any previous block. The previous file is kept as a timestamped
// backup and the new content is written through a temp file and rename.
// Values in the block override the same options earlier in the file.
func SaveKinematics(path string, cfg kinematics.Config) error {
	if err := cfg.Validate(); err != nil {
		return WrapError("plotter", "", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return &ConfigError{File: path, Message: "read for save: " + err.Error(), Cause: err}
	}
	body := stripAutosave(string(data))

	if len(data) > 0 {
		if err := createBackup(path, data); err != nil {
			return err
		}
	}

	content := body + buildAutosave(cfg)
	return writeAtomic(path, content)
}

// stripAutosave returns content with the autosave block removed and a
// single trailing newline.
func stripAutosave(content string) string {
	if idx := strings.Index(content, saveMarker); idx >= 0 {
		content = content[:idx]
	}
	content = strings.TrimRight(content, "\n\t ")
	if content == "" {
		return ""
	}
	return content + "\n"
}

func buildAutosave(cfg kinematics.Config) string {
	format := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

	var sb strings.Builder
	line := func(s string) {
		sb.WriteString(autosavePrefix)
		if s != "" {
			sb.WriteByte(' ')
			sb.WriteString(s)
		}
		sb.WriteByte('\n')
	}

	sb.WriteString("\n")
	sb.WriteString(saveMarker + "\n")
	sb.WriteString(saveNotice + "\n")
	line("")
	line("[plotter]")
	line("shoulder_separation = " + format(cfg.ShoulderSeparation))
	line("body_arm_length = " + format(cfg.BodyArmLength))
	line("upper_arm_length = " + format(cfg.UpperArmLength))
	line("bend_angle = " + format(cfg.BendAngleDegrees))
	line("main_arm_length = " + format(cfg.MainArmLength))
	line("range_tolerance = " + format(cfg.RangeTolerance))
	for _, name := range []string{"servo_left", "servo_right"} {
		line("")
		line("[" + name + "]")
		line("min_angle = " + format(cfg.ServoMin))
		line("max_angle = " + format(cfg.ServoMax))
	}
	return sb.String()
}

// createBackup copies the current file to <base>-YYYYMMDD_HHMMSS<ext>.
func createBackup(path string, data []byte) error {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	backup := fmt.Sprintf("%s-%s%s", base, time.Now().Format("20060102_150405"), ext)
	if err := os.WriteFile(backup, data, 0644); err != nil {
		return &ConfigError{File: backup, Message: "write backup: " + err.Error(), Cause: err}
	}
	return nil
}

func writeAtomic(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".plotter-*.tmp")
	if err != nil {
		return &ConfigError{File: path, Message: "create temp file: " + err.Error(), Cause: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &ConfigError{File: path, Message: "write config: " + err.Error(), Cause: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &ConfigError{File: path, Message: "close temp file: " + err.Error(), Cause: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &ConfigError{File: path, Message: "replace config: " + err.Error(), Cause: err}
	}
	return nil
}
