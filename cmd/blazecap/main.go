// blazecap captures live TCP traffic on the main session port and prints
// decoded Blaze packets as they go by. It's a diagnostic tool only: it
// cannot see inside a real SSLv3 session (the payload is RC4-encrypted on
// the wire), so it's meant to be pointed at a local, unencrypted capture —
// e.g. a debug loopback proxy in front of the session server.
//
// Adapted from archon's cmd/sniffer, which did the equivalent job for the
// PSOBB packet format.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"github.com/dcrodman/pocketrelay/internal/blaze"
)

var (
	device = flag.String("d", "en0", "Device on which to listen for packets")
	port   = flag.Uint("port", 14219, "TCP port carrying Blaze traffic")
)

func main() {
	flag.Parse()

	deviceIP := getDeviceIP()
	if deviceIP == "" {
		exit("invalid device: %s", *device)
	}

	handle, err := pcap.OpenLive(*device, math.MaxInt32, false, pcap.BlockForever)
	if err != nil {
		exit("error opening handle: %v", err)
	}
	if err := handle.SetBPFFilter(fmt.Sprintf("tcp port %d", *port)); err != nil {
		exit("error setting capture filter: %v", err)
	}

	readers := map[string]*blaze.Reader{}
	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	for packet := range packetSource.Packets() {
		app := packet.ApplicationLayer()
		if app == nil {
			continue
		}

		flow := packet.TransportLayer().TransportFlow()
		key := flow.Src().String() + "->" + flow.Dst().String()

		reader, ok := readers[key]
		if !ok {
			reader = &blaze.Reader{}
			readers[key] = reader
		}

		frames, err := reader.Feed(app.Payload())
		if err != nil {
			fmt.Printf("%s: framing error: %v\n", key, err)
			continue
		}

		for _, frame := range frames {
			printPacket(key, frame)
		}
	}
}

func printPacket(flowKey string, pkt blaze.Packet) {
	fmt.Printf("\n=== %s  component=0x%x command=0x%x type=%v error=0x%x ===\n",
		flowKey, pkt.Header.ComponentID, pkt.Header.CommandID, pkt.Header.Type, pkt.Header.ErrorCode)

	body, err := blaze.Decode(pkt.Body)
	if err != nil {
		fmt.Printf("(undecodable body, %d raw bytes): %v\n", len(pkt.Body), err)
		return
	}
	spew.Dump(body)
}

func exit(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}

func getDeviceIP() string {
	devs, _ := pcap.FindAllDevs()
	for _, dev := range devs {
		if dev.Name == *device {
			for _, address := range dev.Addresses {
				return address.IP.String()
			}
		}
	}
	return ""
}
