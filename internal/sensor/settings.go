package sensor

// Settings is a full snapshot of the sensor's configuration surface.
// Distances and heights are in the configured distance unit; angles are in
// degrees. Mirror is a host-side transform and is not stored on the device.
type Settings struct {
	Mode              CaptureMode  `json:"mode"`
	FrameRate         int          `json:"frame_rate"`
	Mirror            bool         `json:"mirror"`
	DistanceFilterMin float64      `json:"distance_filter_min"`
	DistanceFilterMax float64      `json:"distance_filter_max"`
	AngleFilterMin    int          `json:"angle_filter_min"`
	AngleFilterMax    int          `json:"angle_filter_max"`
	HeightFilterMin   float64      `json:"height_filter_min"`
	HeightFilterMax   float64      `json:"height_filter_max"`
	MovingFilter      MovingFilter `json:"moving_filter"`
	PointDensity      Density      `json:"point_density"`
	Sensitivity       int          `json:"sensitivity"`
	ObjectTypeMode    ObjectType   `json:"object_type_mode"`
	AutoStart         bool         `json:"auto_start"`
}

// Settings reads every setting back from the sensor so the local view
// matches the device, including values persisted from a previous session.
func (s *Sensor) Settings() (Settings, error) {
	var out Settings
	var err error

	out.Mirror = s.Mirror()
	if out.Mode, err = s.Mode(); err != nil {
		return out, err
	}
	if out.FrameRate, err = s.FrameRate(); err != nil {
		return out, err
	}
	if out.DistanceFilterMin, out.DistanceFilterMax, err = s.DistanceFilter(); err != nil {
		return out, err
	}
	if out.AngleFilterMin, out.AngleFilterMax, err = s.AngleFilter(); err != nil {
		return out, err
	}
	if out.HeightFilterMin, out.HeightFilterMax, err = s.HeightFilter(); err != nil {
		return out, err
	}
	if out.MovingFilter, err = s.MovingFilter(); err != nil {
		return out, err
	}
	if out.PointDensity, err = s.PointDensity(); err != nil {
		return out, err
	}
	if out.Sensitivity, err = s.Sensitivity(); err != nil {
		return out, err
	}
	if out.ObjectTypeMode, err = s.ObjectTypeMode(); err != nil {
		return out, err
	}
	if out.AutoStart, err = s.AutoStart(); err != nil {
		return out, err
	}
	return out, nil
}

// SettingsPatch is a partial settings update. Nil fields are left
// untouched. Filter bounds travel in pairs; setting one bound fetches the
// other from the sensor first.
type SettingsPatch struct {
	Mode              *CaptureMode  `json:"mode,omitempty"`
	FrameRate         *int          `json:"frame_rate,omitempty"`
	Mirror            *bool         `json:"mirror,omitempty"`
	DistanceFilterMin *float64      `json:"distance_filter_min,omitempty"`
	DistanceFilterMax *float64      `json:"distance_filter_max,omitempty"`
	AngleFilterMin    *int          `json:"angle_filter_min,omitempty"`
	AngleFilterMax    *int          `json:"angle_filter_max,omitempty"`
	HeightFilterMin   *float64      `json:"height_filter_min,omitempty"`
	HeightFilterMax   *float64      `json:"height_filter_max,omitempty"`
	MovingFilter      *MovingFilter `json:"moving_filter,omitempty"`
	PointDensity      *Density      `json:"point_density,omitempty"`
	Sensitivity       *int          `json:"sensitivity,omitempty"`
	ObjectTypeMode    *ObjectType   `json:"object_type_mode,omitempty"`
	AutoStart         *bool         `json:"auto_start,omitempty"`
}

// Empty reports whether the patch carries no changes.
func (p SettingsPatch) Empty() bool {
	return p == SettingsPatch{}
}

// Apply writes the non-nil fields of the patch to the sensor. Settings are
// applied in declaration order and the first failure aborts the rest.
func (s *Sensor) Apply(p SettingsPatch) error {
	if p.Mode != nil {
		if err := s.SetMode(*p.Mode); err != nil {
			return err
		}
	}
	if p.FrameRate != nil {
		if err := s.SetFrameRate(*p.FrameRate); err != nil {
			return err
		}
	}
	if p.Mirror != nil {
		s.SetMirror(*p.Mirror)
	}
	if p.DistanceFilterMin != nil || p.DistanceFilterMax != nil {
		min, max, err := s.resolveDistanceBounds(p.DistanceFilterMin, p.DistanceFilterMax)
		if err != nil {
			return err
		}
		if err := s.SetDistanceFilter(min, max); err != nil {
			return err
		}
	}
	if p.AngleFilterMin != nil || p.AngleFilterMax != nil {
		min, max, err := s.resolveAngleBounds(p.AngleFilterMin, p.AngleFilterMax)
		if err != nil {
			return err
		}
		if err := s.SetAngleFilter(min, max); err != nil {
			return err
		}
	}
	if p.HeightFilterMin != nil || p.HeightFilterMax != nil {
		min, max, err := s.resolveHeightBounds(p.HeightFilterMin, p.HeightFilterMax)
		if err != nil {
			return err
		}
		if err := s.SetHeightFilter(min, max); err != nil {
			return err
		}
	}
	if p.MovingFilter != nil {
		if err := s.SetMovingFilter(*p.MovingFilter); err != nil {
			return err
		}
	}
	if p.PointDensity != nil {
		if err := s.SetPointDensity(*p.PointDensity); err != nil {
			return err
		}
	}
	if p.Sensitivity != nil {
		if err := s.SetSensitivity(*p.Sensitivity); err != nil {
			return err
		}
	}
	if p.ObjectTypeMode != nil {
		if err := s.SetObjectTypeMode(*p.ObjectTypeMode); err != nil {
			return err
		}
	}
	if p.AutoStart != nil {
		if err := s.SetAutoStart(*p.AutoStart); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sensor) resolveDistanceBounds(min, max *float64) (float64, float64, error) {
	if min != nil && max != nil {
		return *min, *max, nil
	}
	curMin, curMax, err := s.DistanceFilter()
	if err != nil {
		return 0, 0, err
	}
	if min != nil {
		curMin = *min
	}
	if max != nil {
		curMax = *max
	}
	return curMin, curMax, nil
}

func (s *Sensor) resolveAngleBounds(min, max *int) (int, int, error) {
	if min != nil && max != nil {
		return *min, *max, nil
	}
	curMin, curMax, err := s.AngleFilter()
	if err != nil {
		return 0, 0, err
	}
	if min != nil {
		curMin = *min
	}
	if max != nil {
		curMax = *max
	}
	return curMin, curMax, nil
}

func (s *Sensor) resolveHeightBounds(min, max *float64) (float64, float64, error) {
	if min != nil && max != nil {
		return *min, *max, nil
	}
	curMin, curMax, err := s.HeightFilter()
	if err != nil {
		return 0, 0, err
	}
	if min != nil {
		curMin = *min
	}
	if max != nil {
		curMax = *max
	}
	return curMin, curMax, nil
}
