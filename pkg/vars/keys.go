package vars

// Keys maps symbolic key names usable as !{NAME} to WebDriver key codes.
var Keys = map[string]string{
	"KEY_NULL":         "\ue000",
	"KEY_CANCEL":       "\ue001",
	"KEY_HELP":         "\ue002",
	"KEY_BACKSPACE":    "\ue003",
	"KEY_BACK_SPACE":   "\ue003",
	"KEY_TAB":          "\ue004",
	"KEY_CLEAR":        "\ue005",
	"KEY_RETURN":       "\ue006",
	"KEY_ENTER":        "\ue007",
	"KEY_SHIFT":        "\ue008",
	"KEY_LEFT_SHIFT":   "\ue008",
	"KEY_CONTROL":      "\ue009",
	"KEY_LEFT_CONTROL": "\ue009",
	"KEY_ALT":          "\ue00a",
	"KEY_LEFT_ALT":     "\ue00a",
	"KEY_PAUSE":        "\ue00b",
	"KEY_ESCAPE":       "\ue00c",
	"KEY_SPACE":        "\ue00d",
	"KEY_PAGE_UP":      "\ue00e",
	"KEY_PAGE_DOWN":    "\ue00f",
	"KEY_END":          "\ue010",
	"KEY_HOME":         "\ue011",

	"KEY_LEFT":        "\ue012",
	"KEY_ARROW_LEFT":  "\ue012",
	"KEY_UP":          "\ue013",
	"KEY_ARROW_UP":    "\ue013",
	"KEY_RIGHT":       "\ue014",
	"KEY_ARROW_RIGHT": "\ue014",
	"KEY_DOWN":        "\ue015",
	"KEY_ARROW_DOWN":  "\ue015",

	"KEY_INSERT":    "\ue016",
	"KEY_DELETE":    "\ue017",
	"KEY_SEMICOLON": "\ue018",
	"KEY_EQUALS":    "\ue019",

	"KEY_NUMPAD0":   "\ue01a",
	"KEY_NUMPAD1":   "\ue01b",
	"KEY_NUMPAD2":   "\ue01c",
	"KEY_NUMPAD3":   "\ue01d",
	"KEY_NUMPAD4":   "\ue01e",
	"KEY_NUMPAD5":   "\ue01f",
	"KEY_NUMPAD6":   "\ue020",
	"KEY_NUMPAD7":   "\ue021",
	"KEY_NUMPAD8":   "\ue022",
	"KEY_NUMPAD9":   "\ue023",
	"KEY_MULTIPLY":  "\ue024",
	"KEY_ADD":       "\ue025",
	"KEY_SEPARATOR": "\ue026",
	"KEY_SUBTRACT":  "\ue027",
	"KEY_DECIMAL":   "\ue028",
	"KEY_DIVIDE":    "\ue029",

	"KEY_F1":  "\ue031",
	"KEY_F2":  "\ue032",
	"KEY_F3":  "\ue033",
	"KEY_F4":  "\ue034",
	"KEY_F5":  "\ue035",
	"KEY_F6":  "\ue036",
	"KEY_F7":  "\ue037",
	"KEY_F8":  "\ue038",
	"KEY_F9":  "\ue039",
	"KEY_F10": "\ue03a",
	"KEY_F11": "\ue03b",
	"KEY_F12": "\ue03c",

	"KEY_META":    "\ue03d",
	"KEY_COMMAND": "\ue03d",
}
