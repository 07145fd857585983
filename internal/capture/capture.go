package capture

// Exchange capture for the simulators.
//
// The servers own both sides of every exchange, so instead of sniffing a
// live interface the capture synthesizes Ethernet/IPv4/UDP or TCP frames
// around the application payloads and appends them to a pcap file. The
// result opens in Wireshark with working protocol dissection and needs
// no capture privileges.

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Capture appends synthesized packets to a pcap file. Safe for use from
// multiple connection goroutines.
type Capture struct {
	mu      sync.Mutex
	file    *os.File
	w       *pcapgo.Writer
	seq     map[string]uint32 // TCP sequence number per flow direction
	packets int
}

// Open creates the pcap file and writes its header.
func Open(path string) (*Capture, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create pcap file: %w", err)
	}
	w := pcapgo.NewWriter(file)
	if err := w.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		file.Close()
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &Capture{file: file, w: w, seq: make(map[string]uint32)}, nil
}

// RecordUDP appends one datagram flowing src -> dst.
func (c *Capture) RecordUDP(src, dst net.Addr, payload []byte) error {
	srcIP, srcPort, err := splitAddr(src)
	if err != nil {
		return err
	}
	dstIP, dstPort, err := splitAddr(dst)
	if err != nil {
		return err
	}

	ip := ipv4Layer(srcIP, dstIP, layers.IPProtocolUDP)
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(srcPort),
		DstPort: layers.UDPPort(dstPort),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return err
	}
	return c.writePacket(srcIP, dstIP, ip, udp, payload)
}

// RecordTCP appends one application message flowing src -> dst as a
// single PSH/ACK segment, with per-direction sequence tracking so stream
// reassembly works on the file.
func (c *Capture) RecordTCP(src, dst net.Addr, payload []byte) error {
	srcIP, srcPort, err := splitAddr(src)
	if err != nil {
		return err
	}
	dstIP, dstPort, err := splitAddr(dst)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%s:%d>%s:%d", srcIP, srcPort, dstIP, dstPort)

	c.mu.Lock()
	seq := c.seq[key]
	if seq == 0 {
		seq = 1
	}
	c.seq[key] = seq + uint32(len(payload))
	c.mu.Unlock()

	ip := ipv4Layer(srcIP, dstIP, layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     seq,
		PSH:     true,
		ACK:     true,
		Window:  65535,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return err
	}
	return c.writePacket(srcIP, dstIP, ip, tcp, payload)
}

// Close flushes and closes the pcap file.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}

func (c *Capture) writePacket(srcIP, dstIP net.IP, ip *layers.IPv4, transport gopacket.SerializableLayer, payload []byte) error {
	eth := &layers.Ethernet{
		SrcMAC:       macFor(srcIP),
		DstMAC:       macFor(dstIP),
		EthernetType: layers.EthernetTypeIPv4,
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, transport, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("serialize packet: %w", err)
	}
	data := buf.Bytes()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return fmt.Errorf("capture closed")
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := c.w.WritePacket(ci, data); err != nil {
		return err
	}
	c.packets++
	return nil
}

// PacketCount returns the number of packets written so far.
func (c *Capture) PacketCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.packets
}

func ipv4Layer(src, dst net.IP, proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: proto,
		SrcIP:    src,
		DstIP:    dst,
	}
}

// macFor derives a stable locally administered MAC from an IPv4 address.
func macFor(ip net.IP) net.HardwareAddr {
	v4 := ip.To4()
	return net.HardwareAddr{0x02, 0x00, v4[0], v4[1], v4[2], v4[3]}
}

func splitAddr(addr net.Addr) (net.IP, int, error) {
	var ip net.IP
	var port int
	switch a := addr.(type) {
	case *net.UDPAddr:
		ip, port = a.IP, a.Port
	case *net.TCPAddr:
		ip, port = a.IP, a.Port
	default:
		return nil, 0, fmt.Errorf("unsupported address type %T", addr)
	}
	// Synthesized frames are IPv4; fold anything else onto loopback.
	if ip.To4() == nil {
		ip = net.IPv4(127, 0, 0, 1)
	}
	return ip, port, nil
}
