package sim

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tturner/fieldsim/internal/logging"
	"github.com/tturner/fieldsim/internal/memory"
	"github.com/tturner/fieldsim/internal/wire"
)

type countingModel struct {
	ticks atomic.Int64
}

func (c *countingModel) Name() string { return "counting" }
func (c *countingModel) Tick() error  { c.ticks.Add(1); return nil }

func TestEngineTicksAndStops(t *testing.T) {
	logger, _ := logging.NewLogger(logging.LogLevelSilent, "")
	model := &countingModel{}
	engine := NewEngine(model, 10*time.Millisecond, logger)

	engine.Start()
	time.Sleep(100 * time.Millisecond)
	engine.Stop()

	after := model.ticks.Load()
	if after == 0 {
		t.Fatal("engine never ticked")
	}
	time.Sleep(50 * time.Millisecond)
	if model.ticks.Load() != after {
		t.Error("engine ticked after Stop")
	}
}

// Disjoint bit writers racing a ticking motor must each find exactly
// their own bits set afterwards, and the motor's words must be
// internally consistent.
func TestEngineConcurrentClients(t *testing.T) {
	logger, _ := logging.NewLogger(logging.LogLevelSilent, "")
	store, err := memory.NewStore(binary.BigEndian, []memory.AreaDef{
		{Name: "CIO", Words: 64},
		{Name: "DM", Words: 64},
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	var cmd [6]byte
	wire.PutUint16(binary.BigEndian, cmd[0:], 1)
	wire.PutInt32(binary.BigEndian, cmd[2:], 3000)
	store.WriteWords("DM", 0, cmd[:])

	engine := NewEngine(NewMotor(store, "DM", "CIO"), time.Millisecond, logger)
	engine.Start()

	// Sixteen writers, each owning one bit of CIO words 2..17, away
	// from the motor's status bits in word 0.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if err := store.WriteBits("CIO", 2+n, n%16, []byte{byte(j % 2)}); err != nil {
					t.Errorf("writer %d: %v", n, err)
					return
				}
			}
			store.WriteBits("CIO", 2+n, n%16, []byte{1})
		}(i)
	}
	wg.Wait()
	engine.Stop()

	for i := 0; i < 16; i++ {
		bits, err := store.ReadBits("CIO", 2+i, i%16, 1)
		if err != nil {
			t.Fatalf("ReadBits: %v", err)
		}
		if bits[0] != 1 {
			t.Errorf("writer %d bit lost", i)
		}
		// The rest of the word belongs to nobody and must be clear.
		words, err := store.ReadWords("CIO", 2+i, 1)
		if err != nil {
			t.Fatalf("ReadWords: %v", err)
		}
		w, _ := wire.Uint16(binary.BigEndian, words)
		if w != 1<<(i%16) {
			t.Errorf("CIO word %d = 0x%04X, want only bit %d", 2+i, w, i%16)
		}
	}

	// Motor advanced and its status stayed coherent with the command.
	data, _ := store.ReadWords("DM", motorRegStatus, 1)
	status, _ := wire.Uint16(binary.BigEndian, data)
	if status != 1 {
		t.Errorf("motor status = %d, want running", status)
	}
	data, _ = store.ReadWords("DM", motorRegCurrent, 2)
	rpm, _ := wire.Int32(binary.BigEndian, data)
	if rpm <= 0 || rpm > 3000 {
		t.Errorf("motor rpm = %d, want within (0, 3000]", rpm)
	}

	snap := store.Snapshot()
	if len(snap["CIO"]) != 128 || len(snap["DM"]) != 128 {
		t.Errorf("snapshot sizes = %d/%d, want 128/128", len(snap["CIO"]), len(snap["DM"]))
	}
}
