package codec

// Alarm es la etiqueta de alarma de un registro.
type Alarm string

const (
	AlarmNone           Alarm = ""
	AlarmFatigueDriving Alarm = "fatigueDriving"
	AlarmSOS            Alarm = "sos"
	AlarmBraking        Alarm = "hardBraking"
	AlarmAcceleration   Alarm = "hardAcceleration"
	AlarmCornering      Alarm = "hardCornering"
	AlarmAccident       Alarm = "accident"
	AlarmRemoving       Alarm = "removing"
)

// SetAlarm guarda la alarma; AlarmNone no deja atributo.
func (r *Record) SetAlarm(a Alarm) {
	if a != AlarmNone {
		r.Attributes.SetString(KeyAlarm, string(a))
	}
}
