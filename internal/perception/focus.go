package perception

// PickFocus selects the first non-empty channel in the fixed order
// speech > vision > sound. The other non-empty channels become auxiliary
// context, in the same order. An empty report yields a zero Focus.
func PickFocus(r Report) Focus {
	channels := []struct {
		name, text string
	}{
		{ChannelSpeech, r.Speech},
		{ChannelVision, r.Vision},
		{ChannelSound, r.Sound},
	}

	var f Focus
	for _, c := range channels {
		if c.text == "" {
			continue
		}
		if f.Main == "" {
			f.Channel = c.name
			f.Main = c.text
			continue
		}
		f.Aux = append(f.Aux, c.text)
	}
	return f
}
