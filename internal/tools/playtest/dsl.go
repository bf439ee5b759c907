package playtest

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
)

const scriptTypeName = "playtest"

// Script is a parsed playtest: an ordered list of steps run against one
// session.
type Script struct {
	Name    string
	Options map[string]any
	Steps   []Step
}

// Step is one scripted action or expectation.
type Step struct {
	Kind string
	Args map[string]any
	// ExpectError names the error code the step must fail with.
	ExpectError string
}

// LoadScriptFromFile runs a Lua file that must return a Playtest.
func LoadScriptFromFile(path string) (*Script, error) {
	state := newState()
	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	script, err := runChunk(state)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(script.Name) == "" {
		script.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return script, nil
}

// LoadScript runs Lua source that must return a Playtest.
func LoadScript(name, source string) (*Script, error) {
	state := newState()
	if err := lua.LoadString(state, source); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	script, err := runChunk(state)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(script.Name) == "" {
		script.Name = name
	}
	return script, nil
}

func newState() *lua.State {
	state := lua.NewState()
	lua.OpenLibraries(state)
	registerScriptType(state)
	registerScriptConstructor(state)
	return state
}

func runChunk(state *lua.State) (*Script, error) {
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}
	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("playtest script must return Playtest")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	script, ok := ud.(*Script)
	if !ok || script == nil {
		return nil, fmt.Errorf("playtest script returned invalid Playtest")
	}
	return script, nil
}

func registerScriptType(state *lua.State) {
	lua.NewMetaTable(state, scriptTypeName)
	state.NewTable()
	lua.SetFunctions(state, scriptMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerScriptConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{{Name: "new", Function: scriptNew}}, 0)
	state.SetGlobal("Playtest")
}

func scriptNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	script := &Script{Name: name, Options: optionalTable(state, 2)}
	state.PushUserData(script)
	lua.SetMetaTableNamed(state, scriptTypeName)
	return 1
}

var scriptMethods = []lua.RegistryFunction{
	{Name: "join", Function: participantStep("join")},
	{Name: "leave", Function: participantStep("leave")},
	{Name: "start_voting", Function: bareStep("start_voting")},
	{Name: "cancel_voting", Function: bareStep("cancel_voting")},
	{Name: "resolve", Function: bareStep("resolve")},
	{Name: "vote", Function: ballotStep("vote")},
	{Name: "veto", Function: ballotStep("veto")},
	{Name: "performance", Function: scriptPerformance},
	{Name: "advance", Function: scriptAdvance},
	{Name: "phase", Function: scriptPhase},
	{Name: "start", Function: scenarioStep("start")},
	{Name: "activate", Function: scenarioStep("activate")},
	{Name: "deactivate", Function: scenarioStep("deactivate")},
	{Name: "mark", Function: scriptMark},
	{Name: "label", Function: scriptLabel},
	{Name: "cancel", Function: scriptCancel},
	{Name: "rotation", Function: scriptRotation},
	{Name: "expect_error", Function: scriptExpectError},
	{Name: "expect_phase", Function: expectString("expect_phase", "phase")},
	{Name: "expect_winner", Function: expectString("expect_winner", "scenario")},
	{Name: "expect_options", Function: expectNumber("expect_options", "count")},
	{Name: "expect_participants", Function: expectNumber("expect_participants", "count")},
	{Name: "expect_active", Function: scriptExpectActive},
	{Name: "expect_state", Function: scriptExpectState},
	{Name: "expect_stage", Function: scriptExpectStage},
	{Name: "expect_stats", Function: scriptExpectStats},
	{Name: "expect_event", Function: scriptExpectEvent},
}

func bareStep(kind string) lua.Function {
	return func(state *lua.State) int {
		appendStep(checkScript(state), kind, nil)
		return 0
	}
}

func participantStep(kind string) lua.Function {
	return func(state *lua.State) int {
		script := checkScript(state)
		participant := lua.CheckString(state, 2)
		appendStep(script, kind, map[string]any{"participant": participant})
		return 0
	}
}

// ballotStep accepts a scenario ID or a 1-based index into the current
// ballot.
func ballotStep(kind string) lua.Function {
	return func(state *lua.State) int {
		script := checkScript(state)
		participant := lua.CheckString(state, 2)
		args := map[string]any{"participant": participant}
		switch state.TypeOf(3) {
		case lua.TypeNumber:
			args["option"] = lua.CheckInteger(state, 3)
		default:
			args["scenario"] = lua.CheckString(state, 3)
		}
		appendStep(script, kind, args)
		return 0
	}
}

func scenarioStep(kind string) lua.Function {
	return func(state *lua.State) int {
		script := checkScript(state)
		scenarioID := lua.CheckString(state, 2)
		args := optionalTable(state, 3)
		args["scenario"] = scenarioID
		appendStep(script, kind, args)
		return 0
	}
}

func scriptPerformance(state *lua.State) int {
	script := checkScript(state)
	participant := lua.CheckString(state, 2)
	score := lua.CheckNumber(state, 3)
	appendStep(script, "performance", map[string]any{"participant": participant, "score": score})
	return 0
}

// scriptAdvance accepts seconds or a Go duration string.
func scriptAdvance(state *lua.State) int {
	script := checkScript(state)
	args := map[string]any{}
	if state.TypeOf(2) == lua.TypeNumber {
		args["seconds"] = lua.CheckNumber(state, 2)
	} else {
		args["duration"] = lua.CheckString(state, 2)
	}
	appendStep(script, "advance", args)
	return 0
}

func scriptPhase(state *lua.State) int {
	script := checkScript(state)
	appendStep(script, "phase", map[string]any{"phase": lua.CheckString(state, 2)})
	return 0
}

func scriptMark(state *lua.State) int {
	script := checkScript(state)
	alias := lua.CheckString(state, 2)
	index := lua.CheckInteger(state, 3)
	result := lua.OptString(state, 4, "success")
	appendStep(script, "mark", map[string]any{"instance": alias, "index": index, "result": result})
	return 0
}

func scriptLabel(state *lua.State) int {
	script := checkScript(state)
	alias := lua.CheckString(state, 2)
	label := lua.CheckString(state, 3)
	n := lua.OptInteger(state, 4, 1)
	appendStep(script, "label", map[string]any{"instance": alias, "label": label, "n": n})
	return 0
}

func scriptCancel(state *lua.State) int {
	script := checkScript(state)
	appendStep(script, "cancel", map[string]any{"instance": lua.CheckString(state, 2)})
	return 0
}

func scriptRotation(state *lua.State) int {
	script := checkScript(state)
	scenarioID := lua.CheckString(state, 2)
	weight := lua.CheckNumber(state, 3)
	gap := lua.OptInteger(state, 4, 0)
	appendStep(script, "rotation", map[string]any{"scenario": scenarioID, "weight": weight, "gap": gap})
	return 0
}

// scriptExpectError marks the previous step as expected to fail with code.
func scriptExpectError(state *lua.State) int {
	script := checkScript(state)
	code := lua.CheckString(state, 2)
	if len(script.Steps) == 0 {
		lua.Errorf(state, "expect_error needs a preceding step")
		return 0
	}
	script.Steps[len(script.Steps)-1].ExpectError = code
	return 0
}

func expectString(kind, key string) lua.Function {
	return func(state *lua.State) int {
		script := checkScript(state)
		appendStep(script, kind, map[string]any{key: lua.CheckString(state, 2)})
		return 0
	}
}

func expectNumber(kind, key string) lua.Function {
	return func(state *lua.State) int {
		script := checkScript(state)
		appendStep(script, kind, map[string]any{key: lua.CheckInteger(state, 2)})
		return 0
	}
}

func scriptExpectActive(state *lua.State) int {
	script := checkScript(state)
	var ids []any
	if state.TypeOf(2) == lua.TypeTable {
		if list, ok := tableToGo(state, 2).([]any); ok {
			ids = list
		}
	} else if !state.IsNoneOrNil(2) {
		ids = []any{lua.CheckString(state, 2)}
	}
	appendStep(script, "expect_active", map[string]any{"scenarios": ids})
	return 0
}

func scriptExpectState(state *lua.State) int {
	script := checkScript(state)
	alias := lua.CheckString(state, 2)
	appendStep(script, "expect_state", map[string]any{"instance": alias, "state": lua.CheckString(state, 3)})
	return 0
}

func scriptExpectStage(state *lua.State) int {
	script := checkScript(state)
	alias := lua.CheckString(state, 2)
	appendStep(script, "expect_stage", map[string]any{"instance": alias, "stage": lua.CheckString(state, 3)})
	return 0
}

func scriptExpectStats(state *lua.State) int {
	script := checkScript(state)
	scenarioID := lua.CheckString(state, 2)
	lua.CheckType(state, 3, lua.TypeTable)
	args := tableToMap(state, 3)
	args["scenario"] = scenarioID
	appendStep(script, "expect_stats", args)
	return 0
}

func scriptExpectEvent(state *lua.State) int {
	script := checkScript(state)
	eventType := lua.CheckString(state, 2)
	args := optionalTable(state, 3)
	args["type"] = eventType
	appendStep(script, "expect_event", args)
	return 0
}

func checkScript(state *lua.State) *Script {
	ud := lua.CheckUserData(state, 1, scriptTypeName)
	if script, ok := ud.(*Script); ok && script != nil {
		return script
	}
	lua.ArgumentError(state, 1, "playtest expected")
	return nil
}

func appendStep(script *Script, kind string, data map[string]any) {
	if script == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	script.Steps = append(script.Steps, Step{Kind: kind, Args: data})
}

func optionalTable(state *lua.State, index int) map[string]any {
	if state.IsNoneOrNil(index) || state.TypeOf(index) != lua.TypeTable {
		return map[string]any{}
	}
	return tableToMap(state, index)
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	default:
		return nil
	}
}

func tableToGo(state *lua.State, index int) any {
	if state.TypeOf(index) != lua.TypeTable {
		return nil
	}

	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}
	return tableToMap(state, index)
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}
