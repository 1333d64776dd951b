// Copyright © 2020 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package klog is the transaction engine's level-tagged logger.
package klog

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Specifies the log levels
const (
	LevelError = iota + 1
	LevelWarning
	LevelInfo
	LevelDebug
	LevelVerbose // same as Debug, but without repeat filtering
)

// Specifies the phase tags used across the transaction lifecycle
const (
	Core      = "CORE"
	Resolve   = "RESOLVE"
	Fetch     = "FETCH"
	Install   = "INSTALL"
	Remove    = "REMOVE"
	Sync      = "SYNC"
	Build     = "BUILD"
	Universe  = "UNIVERSE"
)

var (
	level      = LevelInfo
	levelMap   = map[int]string{}
	fileHandle *os.File
	logging    = false
	lineLast   string
	lineCount  int
	tagMap     = map[string]bool{}
)

func init() {
	levelMap[LevelError] = "ERROR"
	levelMap[LevelWarning] = "WARNING"
	levelMap[LevelInfo] = "INFO"
	levelMap[LevelDebug] = "DEBUG"
	levelMap[LevelVerbose] = "VERBOSE"
	for _, t := range []string{Core, Resolve, Fetch, Install, Remove, Sync, Build, Universe} {
		tagMap[t] = true
	}
}

// SetLevel sets the minimum level that is forwarded to the log file.
func SetLevel(l int) {
	if l < LevelError {
		level = LevelError
	} else if l > LevelVerbose {
		level = LevelVerbose
	} else {
		level = l
	}
}

// SetOutputFilename routes subsequent log lines to filename instead of discarding them.
func SetOutputFilename(logFile string) (*os.File, error) {
	f, err := os.OpenFile(logFile, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	fileHandle = f
	log.SetOutput(fileHandle)
	logging = true
	return fileHandle, nil
}

// Close closes the log file handle, if one was opened.
func Close() {
	if logging {
		if err := fileHandle.Close(); err != nil {
			fmt.Printf("WARNING: couldn't close log file: %s\n", err)
		}
	}
}

func logTag(tag string, phaseTag, format string, a ...interface{}) {
	if len(a) < 1 {
		format = strings.ReplaceAll(format, "%", "%%")
	}

	f := "[" + tag + "]" + "[" + phaseTag + "] " + format + "\n"
	output := fmt.Sprintf(f, a...)

	if level >= LevelVerbose {
		log.Print(output)
		return
	}

	if output != lineLast {
		if lineCount > 0 {
			plural := ""
			if lineCount > 1 {
				plural = "s"
			}
			log.Printf("[%s] [Previous line repeated %d time%s]\n", tag, lineCount, plural)
		}
		log.Print(output)
		lineLast = output
		lineCount = 0
	} else {
		lineCount++
	}
}

func normalize(phaseTag string) string {
	if _, ok := tagMap[phaseTag]; !ok {
		return Core
	}
	return phaseTag
}

// Debug prints a debug entry to the log file only (never stdout/stderr).
func Debug(phaseTag, format string, a ...interface{}) {
	if level < LevelDebug || !logging {
		return
	}
	logTag("DBG", normalize(phaseTag), format, a...)
}

// Error prints an error entry to stderr and, if open, the log file.
func Error(phaseTag, format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", a...)
	if !logging {
		return
	}
	logTag("ERR", normalize(phaseTag), format, a...)
}

// Info prints an info entry to stdout and, if open, the log file.
func Info(phaseTag, format string, a ...interface{}) {
	fmt.Printf(format+"\n", a...)
	if level < LevelInfo || !logging {
		return
	}
	logTag("INF", normalize(phaseTag), format, a...)
}

// Warning prints a warning entry to stdout and, if open, the log file.
func Warning(phaseTag, format string, a ...interface{}) {
	fmt.Printf("warning: "+format+"\n", a...)
	if level < LevelWarning || !logging {
		return
	}
	logTag("WRN", normalize(phaseTag), format, a...)
}

// Verbose prints a verbose entry to the log file only, without repeat suppression.
func Verbose(phaseTag, format string, a ...interface{}) {
	if level < LevelVerbose || !logging {
		return
	}
	logTag("VRB", normalize(phaseTag), format, a...)
}
