package main

import (
	"encoding/json"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/pontaoski/kalei/reader"
)

const typeInfoSymbol = "__kalei_types"

// typeInfo lists the functions a library defines with their arity. Every
// parameter and result is a double, so arity is the whole signature.
type typeInfo struct {
	Functions map[string]int `json:"functions"`
}

func typeInfoOf(m *ir.Module) typeInfo {
	t := typeInfo{Functions: map[string]int{}}
	for _, fn := range m.Funcs {
		if len(fn.Blocks) == 0 {
			continue
		}
		t.Functions[fn.Name()] = len(fn.Params)
	}
	return t
}

func registerTypeInfoWithModule(t typeInfo, m *ir.Module) {
	data, err := json.Marshal(t)
	if err != nil {
		panic(err)
	}

	g := m.NewGlobalDef(typeInfoSymbol, constant.NewCharArray(append(data, 0)))
	g.Immutable = true
}

func getTypeInfoFromFile(f string) (t typeInfo, err error) {
	data, err := reader.ReadTypeInfo(f, typeInfoSymbol)
	if err != nil {
		return typeInfo{}, err
	}

	err = json.Unmarshal([]byte(data), &t)
	return
}
