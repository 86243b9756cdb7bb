// Command kv stores or reads one key through the host key/value imports.
package main

import (
	"encoding/json"
	"os"
	"unsafe"
)

//go:wasmimport host storeJson
func hostStoreJSON(kptr unsafe.Pointer, klen uint32, vptr unsafe.Pointer, vlen uint32)

//go:wasmimport host readJson
func hostReadJSON(kptr unsafe.Pointer, klen uint32, bufptr unsafe.Pointer, bufcap uint32) uint32

type request struct {
	Op    string `json:"op"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

func ptr(s string) unsafe.Pointer { return unsafe.Pointer(unsafe.StringData(s)) }

func readJSON(key string) string {
	buf := make([]byte, 8)
	n := hostReadJSON(ptr(key), uint32(len(key)), unsafe.Pointer(&buf[0]), uint32(len(buf)))
	if int(n) > len(buf) {
		buf = make([]byte, n)
		n = hostReadJSON(ptr(key), uint32(len(key)), unsafe.Pointer(&buf[0]), uint32(len(buf)))
	}
	return string(buf[:n])
}

func main() {
	var req request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		os.Stderr.WriteString(err.Error())
		os.Exit(1)
	}
	switch req.Op {
	case "store":
		hostStoreJSON(ptr(req.Key), uint32(len(req.Key)), ptr(req.Value), uint32(len(req.Value)))
	case "read":
		os.Stdout.WriteString(readJSON(req.Key))
	default:
		os.Stderr.WriteString("unknown op " + req.Op)
		os.Exit(2)
	}
}
