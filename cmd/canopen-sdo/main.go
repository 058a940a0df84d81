// Command canopen-sdo is a minimal SDO read/write CLI over a CAN bus.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/libcanopen/gocanopen"
	"github.com/libcanopen/gocanopen/can/socketcan"
)

const defaultNodeId = 0x20
const defaultInterface = "can0"

func main() {
	log.SetLevel(log.InfoLevel)

	canInterface := flag.String("i", defaultInterface, "socketcan interface, e.g. can0, vcan0")
	nodeId := flag.Int("n", defaultNodeId, "server node id")
	clientId := flag.Int("c", 0x01, "client (local) node id")
	verbose := flag.Bool("v", false, "enable debug logging")
	write := flag.String("w", "", "write mode: comma-separated bytes, e.g. 1,0,0,0")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: canopen-sdo [flags] <index>:<subindex>")
		os.Exit(1)
	}
	index, subindex, err := parseObjectRef(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid object reference: %v\n", err)
		os.Exit(1)
	}

	bus, err := socketcan.New(*canInterface)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not connect to %v: %v\n", *canInterface, err)
		os.Exit(1)
	}

	busManager := canopen.NewBusManager(bus)
	ctx := context.Background()
	go busManager.Run(ctx)

	client := canopen.NewSDOClient(busManager, uint8(*clientId), uint8(*nodeId))

	if *write != "" {
		data, err := parseBytes(*write)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid write data: %v\n", err)
			os.Exit(1)
		}
		if err := client.WriteObject(ctx, index, subindex, data); err != nil {
			fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %d bytes to 0x%04X:0x%02X\n", len(data), index, subindex)
		return
	}

	buf := make([]byte, 256)
	n, err := client.ReadObject(ctx, index, subindex, buf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("0x%04X:0x%02X = %v (%d bytes)\n", index, subindex, buf[:n], n)
}

func parseObjectRef(s string) (uint16, uint8, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected <index>:<subindex>")
	}
	index, err := strconv.ParseUint(strings.TrimPrefix(parts[0], "0x"), 16, 16)
	if err != nil {
		return 0, 0, err
	}
	subindex, err := strconv.ParseUint(strings.TrimPrefix(parts[1], "0x"), 16, 8)
	if err != nil {
		return 0, 0, err
	}
	return uint16(index), uint8(subindex), nil
}

func parseBytes(s string) ([]byte, error) {
	fields := strings.Split(s, ",")
	out := make([]byte, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 0, 8)
		if err != nil {
			return nil, err
		}
		out = append(out, byte(v))
	}
	return out, nil
}
