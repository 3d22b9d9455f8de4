package entity

import (
	"fmt"
	"strings"
)

// Visibility 作者设置的可见性
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Valid 检查可见性取值
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// VisibilityOverride 审核设置的覆盖可见性，优先于 Visibility
type VisibilityOverride string

const (
	OverrideNone    VisibilityOverride = ""
	OverridePublic  VisibilityOverride = "public"
	OverridePrivate VisibilityOverride = "private"
	OverrideDeleted VisibilityOverride = "deleted"
)

// Valid 检查覆盖可见性取值
func (o VisibilityOverride) Valid() bool {
	switch o {
	case OverrideNone, OverridePublic, OverridePrivate, OverrideDeleted:
		return true
	}
	return false
}

// State 版本的有效可见状态
type State string

const (
	StatePublic  State = "public"
	StatePrivate State = "private"
	StateDeleted State = "deleted"
)

// Class 可见性查询类别
type Class string

const (
	// ClassPublic 公开版本
	ClassPublic Class = "public"
	// ClassExtant 未删除版本
	ClassExtant Class = "extant"
	// ClassFull 全部版本（含已删除）
	ClassFull Class = "full"
)

// stateRule 将 (override, visibility) 组合映射到有效状态；visibility 为空表示不限
type stateRule struct {
	override   VisibilityOverride
	visibility Visibility
	state      State
}

// stateRules 是可见性规则的唯一来源，内存判定与 SQL 条件都由它生成
var stateRules = []stateRule{
	{override: OverrideDeleted, state: StateDeleted},
	{override: OverridePublic, state: StatePublic},
	{override: OverridePrivate, state: StatePrivate},
	{override: OverrideNone, visibility: VisibilityPublic, state: StatePublic},
	{override: OverrideNone, visibility: VisibilityPrivate, state: StatePrivate},
}

// classStates 每个类别接受的有效状态；nil 表示不过滤
var classStates = map[Class][]State{
	ClassFull:   nil,
	ClassExtant: {StatePublic, StatePrivate},
	ClassPublic: {StatePublic},
}

func (r stateRule) matches(visibility Visibility, override VisibilityOverride) bool {
	if r.override != override {
		return false
	}
	return r.visibility == "" || r.visibility == visibility
}

// ResolveState 计算有效状态；不满足任何规则的组合返回 false
func ResolveState(visibility Visibility, override VisibilityOverride) (State, bool) {
	for _, r := range stateRules {
		if r.matches(visibility, override) {
			return r.state, true
		}
	}
	return "", false
}

// ParseClass 解析类别字符串，空串视为 public
func ParseClass(s string) (Class, error) {
	switch c := Class(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return ClassPublic, nil
	case ClassPublic, ClassExtant, ClassFull:
		return c, nil
	default:
		return "", fmt.Errorf("unknown visibility class: %q", s)
	}
}

// Valid 检查类别取值
func (c Class) Valid() bool {
	_, ok := classStates[c]
	return ok
}

// String 实现 fmt.Stringer
func (c Class) String() string {
	return string(c)
}

// accepts 判断类别是否接受某有效状态
func (c Class) accepts(state State) bool {
	states, ok := classStates[c]
	if !ok {
		return false
	}
	if states == nil {
		return true
	}
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

// Matches 内存判定版本是否属于该类别
func (c Class) Matches(v *SubtitleVersion) bool {
	if v == nil || !c.Valid() {
		return false
	}
	if classStates[c] == nil {
		return true
	}
	state, ok := ResolveState(v.Visibility, v.VisibilityOverride)
	return ok && c.accepts(state)
}

// Condition 生成 SQL where 片段与参数；ClassFull 返回空串表示不加条件
func (c Class) Condition() (string, []any) {
	if classStates[c] == nil {
		return "", nil
	}
	var (
		parts []string
		args  []any
	)
	for _, r := range stateRules {
		if !c.accepts(r.state) {
			continue
		}
		if r.visibility == "" {
			parts = append(parts, "visibility_override = ?")
			args = append(args, string(r.override))
			continue
		}
		parts = append(parts, "(visibility_override = ? AND visibility = ?)")
		args = append(args, string(r.override), string(r.visibility))
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

// Covers 返回当前类别结果集中可推导 tip 的所有类别（自身及更窄的类别）
func (c Class) Covers() []Class {
	switch c {
	case ClassFull:
		return []Class{ClassFull, ClassExtant, ClassPublic}
	case ClassExtant:
		return []Class{ClassExtant, ClassPublic}
	case ClassPublic:
		return []Class{ClassPublic}
	}
	return nil
}
