package archive

import "github.com/PabloGalante/ryokai-gateway/internal/domain"

var labels = map[domain.Sender]string{
	domain.SenderPartner:            "Partner",
	domain.SenderSupervisor:         "Ryōkai OS Supervisor",
	domain.SenderAwakenedSupervisor: "Ryōkai OS [AWAKENED]",
	domain.SenderBodhicittaCore:     "Bodhicitta Core",
	domain.SenderAlaya:              "Ālaya",
	domain.SenderManas:              "Manas",
	domain.SenderLogosPrime:         "Logos-Prime",
	domain.SenderMythos:             "Mythos",
	domain.SenderHokai:              "法界体性智",
	domain.SenderDaien:              "大円鏡智",
	domain.SenderTathagata:          "Tathāgata",
	domain.SenderVeo:                "Veo Engine",
	domain.SenderImageEngine:        "Image Engine",
}

// Label is the display name of a stage. Unknown senders are shown as is.
func Label(s domain.Sender) string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}
