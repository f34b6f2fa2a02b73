package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Key es un nombre de atributo bien conocido.
type Key string

const (
	KeyStatus          Key = "status"
	KeyEvent           Key = "event"
	KeyAlarm           Key = "alarm"
	KeyIgnition        Key = "ignition"
	KeyMotion          Key = "motion"
	KeyCharge          Key = "charge"
	KeyOdometer        Key = "odometer"
	KeyTripOdometer    Key = "tripOdometer"
	KeyCoolantTemp     Key = "coolantTemp"
	KeyRPM             Key = "rpm"
	KeyFuelConsumption Key = "fuelConsumption"
	KeyFuelLevel       Key = "fuelLevel"
	KeyPower           Key = "power"
	KeyBattery         Key = "battery"
	KeyBatteryLevel    Key = "batteryLevel"
	KeyRSSI            Key = "rssi"
	KeyHDOP            Key = "hdop"
	KeyPDOP            Key = "pdop"
	KeySatellites      Key = "sat"
	KeyVIN             Key = "vin"
	KeyHours           Key = "hours"
	KeyDeviceTemp      Key = "deviceTemp"
	KeyPriority        Key = "priority"
	KeyResult          Key = "result"
	KeyVersionFw       Key = "versionFw"
	KeyVersionHw       Key = "versionHw"
)

// Kind es el tipo de un Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
)

var keyKinds = map[Key]Kind{
	KeyStatus:          KindInt,
	KeyEvent:           KindInt,
	KeyAlarm:           KindString,
	KeyIgnition:        KindBool,
	KeyMotion:          KindBool,
	KeyCharge:          KindBool,
	KeyOdometer:        KindInt,
	KeyTripOdometer:    KindInt,
	KeyCoolantTemp:     KindInt,
	KeyRPM:             KindInt,
	KeyFuelConsumption: KindFloat,
	KeyFuelLevel:       KindFloat,
	KeyPower:           KindFloat,
	KeyBattery:         KindFloat,
	KeyBatteryLevel:    KindInt,
	KeyRSSI:            KindInt,
	KeyHDOP:            KindFloat,
	KeyPDOP:            KindFloat,
	KeySatellites:      KindInt,
	KeyVIN:             KindString,
	KeyHours:           KindFloat,
	KeyDeviceTemp:      KindInt,
	KeyPriority:        KindInt,
	KeyResult:          KindString,
	KeyVersionFw:       KindString,
	KeyVersionHw:       KindString,
}

// KeyIn es la entrada digital i (bool).
func KeyIn(i int) Key { return Key("in" + strconv.Itoa(i)) }

// KeyADC es la entrada analógica i (int).
func KeyADC(i int) Key { return Key("adc" + strconv.Itoa(i)) }

// KeyOut es la salida digital i (bool).
func KeyOut(i int) Key { return Key("out" + strconv.Itoa(i)) }

// Kind devuelve el tipo declarado de la clave, o KindInvalid si no es una
// clave bien conocida.
func (k Key) Kind() Kind {
	if kind, ok := keyKinds[k]; ok {
		return kind
	}
	s := string(k)
	switch {
	case familyIndex(s, "in"), familyIndex(s, "out"):
		return KindBool
	case familyIndex(s, "adc"):
		return KindInt
	}
	return KindInvalid
}

func familyIndex(s, prefix string) bool {
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return false
	}
	_, err := strconv.Atoi(s[len(prefix):])
	return err == nil
}

// Value es un valor tipado de atributo.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
}

func IntValue(v int64) Value     { return Value{kind: KindInt, i: v} }
func FloatValue(v float64) Value { return Value{kind: KindFloat, f: v} }
func BoolValue(v bool) Value     { return Value{kind: KindBool, b: v} }
func StringValue(v string) Value { return Value{kind: KindString, s: v} }
func (v Value) Kind() Kind       { return v.kind }
func (v Value) Int() int64       { return v.i }
func (v Value) Float() float64   { return v.f }
func (v Value) Bool() bool       { return v.b }
func (v Value) String() string   { return fmt.Sprint(v.Any()) }
func (v Value) Text() string     { return v.s }

// Any devuelve el valor como tipo nativo de Go.
func (v Value) Any() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindString:
		return v.s
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// Attributes mapea claves bien conocidas a valores tipados; Extra guarda las
// claves propias de un dialecto que no están en el conjunto común.
type Attributes struct {
	known map[Key]Value
	Extra map[string]Value
}

func (a *Attributes) set(k Key, v Value) {
	if want := k.Kind(); want != v.kind {
		panic(fmt.Sprintf("codec: attribute %q is %v, got %v", k, want, v.kind))
	}
	if a.known == nil {
		a.known = make(map[Key]Value)
	}
	a.known[k] = v
}

func (a *Attributes) SetInt(k Key, v int64)     { a.set(k, IntValue(v)) }
func (a *Attributes) SetFloat(k Key, v float64) { a.set(k, FloatValue(v)) }
func (a *Attributes) SetBool(k Key, v bool)     { a.set(k, BoolValue(v)) }
func (a *Attributes) SetString(k Key, v string) { a.set(k, StringValue(v)) }

// SetExtra guarda un atributo fuera del conjunto común.
func (a *Attributes) SetExtra(name string, v Value) {
	if a.Extra == nil {
		a.Extra = make(map[string]Value)
	}
	a.Extra[name] = v
}

func (a *Attributes) Get(k Key) (Value, bool) {
	v, ok := a.known[k]
	return v, ok
}

func (a *Attributes) Has(k Key) bool {
	_, ok := a.known[k]
	return ok
}

func (a *Attributes) Int(k Key) (int64, bool) {
	v, ok := a.known[k]
	return v.i, ok && v.kind == KindInt
}

func (a *Attributes) Float(k Key) (float64, bool) {
	v, ok := a.known[k]
	return v.f, ok && v.kind == KindFloat
}

func (a *Attributes) Bool(k Key) (bool, bool) {
	v, ok := a.known[k]
	return v.b, ok && v.kind == KindBool
}

func (a *Attributes) Text(k Key) (string, bool) {
	v, ok := a.known[k]
	return v.s, ok && v.kind == KindString
}

func (a *Attributes) Len() int {
	return len(a.known) + len(a.Extra)
}

// Map aplana atributos comunes y extra en un mapa nativo.
func (a *Attributes) Map() map[string]any {
	out := make(map[string]any, a.Len())
	for k, v := range a.Extra {
		out[k] = v.Any()
	}
	for k, v := range a.known {
		out[string(k)] = v.Any()
	}
	return out
}

func (a Attributes) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Map())
}
