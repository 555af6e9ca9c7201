// Command periphkit-cli is an interactive console for peripherals behind
// a serial I2C/GPIO adapter. It speaks the bridge protocol over a serial
// port and exposes the EEPROM, temperature/humidity and volume drivers
// as shell-style commands.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"golang.org/x/exp/slices"

	"periphkit/core"
	"periphkit/digipot"
	"periphkit/eeprom"
	"periphkit/host/bridge"
	"periphkit/host/serial"
	"periphkit/sht"
	"periphkit/volume"
)

var (
	device     = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud       = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	verbose    = flag.Bool("verbose", false, "Enable debug output on stderr")
	eepromType = flag.String("eeprom", "24lc1025", "EEPROM type: 24lc1025, 24lc512, 24lc256")
	shtAddr    = flag.Uint("sht-addr", sht.DefaultAddress, "SHT3x/SHT85 address (0x44 or 0x45)")
	volData    = flag.Uint("vol-data", 2, "M62429 data pin on the adapter")
	volClock   = flag.Uint("vol-clock", 3, "M62429 clock pin on the adapter")
	potSelect  = flag.Uint("pot-select", 4, "AD520X select pin on the adapter")
	potData    = flag.Uint("pot-data", 5, "AD520X data pin on the adapter")
	potClock   = flag.Uint("pot-clock", 6, "AD520X clock pin on the adapter")
)

// console holds the connected drivers for the command handlers.
type console struct {
	bus *bridge.Bus
	mem *eeprom.Device
	env *sht.Device
	vol *volume.Device

	pot        *digipot.Device
	potStarted bool
}

type command struct {
	usage string
	help  string
	run   func(c *console, args []string) error
}

var commands map[string]*command

func init() {
	commands = map[string]*command{
		"scan":   {"scan", "probe the bus for responding devices", cmdScan},
		"dump":   {"dump <addr> <len>", "hex dump EEPROM contents", cmdDump},
		"read":   {"read <addr> <len>", "read EEPROM bytes", cmdRead},
		"write":  {"write <addr> <byte>...", "write bytes to EEPROM", cmdWrite},
		"fill":   {"fill <addr> <len> <byte>", "fill an EEPROM range, verified", cmdFill},
		"verify": {"verify <addr> <byte>...", "write bytes and read back", cmdVerify},
		"update": {"update <addr> <byte>...", "write only changed bytes", cmdUpdate},
		"temp":   {"temp", "read temperature and humidity", cmdTemp},
		"volume": {"volume <left|right|both> <0-255>", "set M62429 volume", cmdVolume},
		"mute":   {"mute <on|off>", "mute or unmute the M62429", cmdMute},
		"wiper":  {"wiper <channel> <0-255>", "set an AD520X wiper position", cmdWiper},
	}
}

func main() {
	flag.Parse()

	if *verbose {
		core.SetDebugWriter(func(msg string) { fmt.Fprintln(os.Stderr, msg) })
		core.SetDebugEnabled(true)
	}

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud
	bus, err := bridge.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer bus.Close()

	c, err := newConsole(bus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Connected to %s\n", *device)
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	repl(c, os.Stdin)
}

func newConsole(bus *bridge.Bus) (*console, error) {
	cfg, err := eepromConfig(*eepromType)
	if err != nil {
		return nil, err
	}
	mem := eeprom.New(bus, cfg)
	if !mem.Begin() {
		fmt.Fprintln(os.Stderr, "warning: EEPROM does not respond")
	}

	env, err := sht.New(bus, uint8(*shtAddr))
	if err != nil {
		return nil, err
	}

	vol := volume.New(bus.Pin(uint8(*volData)), bus.Pin(uint8(*volClock)), 0)

	pot := digipot.NewAD8403(bus.Pin(uint8(*potSelect)))
	pot.SetDataClockPins(bus.Pin(uint8(*potData)), bus.Pin(uint8(*potClock)))

	return &console{bus: bus, mem: mem, env: env, vol: vol, pot: pot}, nil
}

func eepromConfig(name string) (eeprom.Config, error) {
	switch strings.ToLower(name) {
	case "24lc1025":
		return eeprom.Config24LC1025, nil
	case "24lc512":
		return eeprom.Config24LC512, nil
	case "24lc256":
		return eeprom.Config24LC256, nil
	}
	return eeprom.Config{}, fmt.Errorf("unknown EEPROM type %q", name)
}

func repl(c *console, in *os.File) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		args, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		name := args[0]

		switch name {
		case "quit", "exit", "q":
			return
		case "help", "?":
			printHelp()
			continue
		}

		cmd, ok := commands[name]
		if !ok {
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", name)
			continue
		}
		if err := cmd.run(c, args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}

func printHelp() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)

	fmt.Println("\nAvailable commands:")
	for _, name := range names {
		cmd := commands[name]
		fmt.Printf("  %-36s %s\n", cmd.usage, cmd.help)
	}
	fmt.Printf("  %-36s %s\n", "help", "show this help message")
	fmt.Printf("  %-36s %s\n", "quit", "exit the program")
	fmt.Println()
}

//
// COMMANDS
//

func cmdScan(c *console, args []string) error {
	found := 0
	for addr := uint8(0x08); addr <= 0x77; addr++ {
		if c.bus.Probe(addr) == core.StatusOK {
			fmt.Printf("  device at %#02x\n", addr)
			found++
		}
	}
	fmt.Printf("%d device(s) found\n", found)
	return nil
}

func cmdDump(c *console, args []string) error {
	addr, length, err := parseAddrLen(args)
	if err != nil {
		return err
	}
	buf := make([]byte, length)
	if _, err := c.mem.ReadBlock(addr, buf); err != nil {
		return err
	}
	hexDump(os.Stdout, addr, buf)
	return nil
}

func cmdRead(c *console, args []string) error {
	addr, length, err := parseAddrLen(args)
	if err != nil {
		return err
	}
	buf := make([]byte, length)
	if _, err := c.mem.ReadBlock(addr, buf); err != nil {
		return err
	}
	fmt.Printf("% x\n", buf)
	return nil
}

func cmdWrite(c *console, args []string) error {
	addr, data, err := parseAddrBytes(args)
	if err != nil {
		return err
	}
	if err := c.mem.WriteBlock(addr, data); err != nil {
		return err
	}
	fmt.Printf("wrote %d byte(s) at %#x\n", len(data), addr)
	return nil
}

func cmdFill(c *console, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: %s", commands["fill"].usage)
	}
	addr, err := parseNum(args[0])
	if err != nil {
		return err
	}
	length, err := parseNum(args[1])
	if err != nil {
		return err
	}
	value, err := parseByte(args[2])
	if err != nil {
		return err
	}
	if !c.mem.SetBlockVerify(addr, value, length) {
		return fmt.Errorf("fill at %#x did not verify", addr)
	}
	fmt.Printf("filled %d byte(s) at %#x with %#02x\n", length, addr, value)
	return nil
}

func cmdVerify(c *console, args []string) error {
	addr, data, err := parseAddrBytes(args)
	if err != nil {
		return err
	}
	if !c.mem.WriteBlockVerify(addr, data) {
		return fmt.Errorf("write at %#x did not verify", addr)
	}
	fmt.Printf("wrote and verified %d byte(s) at %#x\n", len(data), addr)
	return nil
}

func cmdUpdate(c *console, args []string) error {
	addr, data, err := parseAddrBytes(args)
	if err != nil {
		return err
	}
	n, err := c.mem.UpdateBlock(addr, data)
	if err != nil {
		return err
	}
	fmt.Printf("updated %d of %d byte(s) at %#x\n", n, len(data), addr)
	return nil
}

func cmdTemp(c *console, args []string) error {
	if err := c.env.Read(false); err != nil {
		return err
	}
	fmt.Printf("temperature: %.2f C\nhumidity: %.1f %%\n", c.env.Temperature(), c.env.Humidity())
	return nil
}

func cmdVolume(c *console, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %s", commands["volume"].usage)
	}
	var channel int
	switch args[0] {
	case "left":
		channel = volume.ChannelLeft
	case "right":
		channel = volume.ChannelRight
	case "both":
		channel = volume.ChannelBoth
	default:
		return fmt.Errorf("channel must be left, right or both")
	}
	v, err := parseByte(args[1])
	if err != nil {
		return err
	}
	return c.vol.SetVolume(channel, v)
}

func cmdMute(c *console, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", commands["mute"].usage)
	}
	switch args[0] {
	case "on":
		c.vol.MuteOn()
	case "off":
		c.vol.MuteOff()
	default:
		return fmt.Errorf("argument must be on or off")
	}
	return nil
}

func cmdWiper(c *console, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %s", commands["wiper"].usage)
	}
	channel, err := parseNum(args[0])
	if err != nil {
		return err
	}
	value, err := parseByte(args[1])
	if err != nil {
		return err
	}
	if !c.potStarted {
		if err := c.pot.Begin(digipot.MiddleValue); err != nil {
			return err
		}
		c.potStarted = true
	}
	return c.pot.SetValue(int(channel), value)
}

//
// PARSING / OUTPUT
//

// parseNum accepts decimal or 0x-prefixed hex.
func parseNum(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return uint32(v), nil
}

func parseByte(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("bad byte %q", s)
	}
	return uint8(v), nil
}

func parseAddrLen(args []string) (uint32, uint32, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("usage: <addr> <len>")
	}
	addr, err := parseNum(args[0])
	if err != nil {
		return 0, 0, err
	}
	length, err := parseNum(args[1])
	if err != nil {
		return 0, 0, err
	}
	return addr, length, nil
}

func parseAddrBytes(args []string) (uint32, []byte, error) {
	if len(args) < 2 {
		return 0, nil, fmt.Errorf("usage: <addr> <byte>...")
	}
	addr, err := parseNum(args[0])
	if err != nil {
		return 0, nil, err
	}
	data := make([]byte, 0, len(args)-1)
	for _, a := range args[1:] {
		b, err := parseByte(a)
		if err != nil {
			return 0, nil, err
		}
		data = append(data, b)
	}
	return addr, data, nil
}

// hexDump prints 16 bytes per row with an ASCII column.
func hexDump(out *os.File, base uint32, data []byte) {
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		row := data[off:end]

		fmt.Fprintf(out, "%08x  ", base+uint32(off))
		for i := 0; i < 16; i++ {
			if i < len(row) {
				fmt.Fprintf(out, "%02x ", row[i])
			} else {
				fmt.Fprint(out, "   ")
			}
			if i == 7 {
				fmt.Fprint(out, " ")
			}
		}
		fmt.Fprint(out, " |")
		for _, b := range row {
			if b >= 0x20 && b < 0x7F {
				fmt.Fprintf(out, "%c", b)
			} else {
				fmt.Fprint(out, ".")
			}
		}
		fmt.Fprintln(out, "|")
	}
}
