package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

type debug struct {
	Detect    bool
	Parse     bool
	Translate bool
	Reach     bool
	BDD       bool
	RPC       bool
}

var d *debug

func init() {
	d = &debug{}
	d.Detect = boolEnv("REMORA_DEBUG_DETECT")
	d.Parse = boolEnv("REMORA_DEBUG_PARSE")
	d.Translate = boolEnv("REMORA_DEBUG_TRANSLATE")
	d.Reach = boolEnv("REMORA_DEBUG_REACH")
	d.BDD = boolEnv("REMORA_DEBUG_BDD")
	d.RPC = boolEnv("REMORA_DEBUG_RPC")
}

func boolEnv(v string) bool {
	x := os.Getenv(v)
	if x == "" {
		return false
	}
	b, _ := strconv.ParseBool(x)
	return b
}

func Detect() bool {
	return d.Detect
}
func Parse() bool {
	return d.Parse
}
func Translate() bool {
	return d.Translate
}
func Reach() bool {
	return d.Reach
}
func BDD() bool {
	return d.BDD
}
func RPC() bool {
	return d.RPC
}

func Logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func LogAny(v any) {
	d, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", v)
		return
	}
	os.Stderr.Write(d)
}
