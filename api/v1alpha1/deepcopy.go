package v1alpha1

// DeepCopyInto copies the receiver into out.
func (in *DeviceConfig) DeepCopyInto(out *DeviceConfig) {
	*out = *in
	if in.MaxMachines != nil {
		v := *in.MaxMachines
		out.MaxMachines = &v
	}
	if in.Power != nil {
		v := *in.Power
		out.Power = &v
	}
	if in.Hashrate != nil {
		v := *in.Hashrate
		out.Hashrate = &v
	}
	if in.Tokens != nil {
		v := *in.Tokens
		out.Tokens = &v
	}
}

// DeepCopy returns a new DeviceConfig.
func (in *DeviceConfig) DeepCopy() *DeviceConfig {
	if in == nil {
		return nil
	}
	out := new(DeviceConfig)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver into out.
func (in *InferenceConfig) DeepCopyInto(out *InferenceConfig) {
	out.ASIC = in.ASIC.DeepCopy()
	out.GPU = in.GPU.DeepCopy()
}

// DeepCopyInto copies the receiver into out.
func (in *MinerConfig) DeepCopyInto(out *MinerConfig) {
	out.Air = in.Air.DeepCopy()
	out.Hydro = in.Hydro.DeepCopy()
	out.Immersion = in.Immersion.DeepCopy()
}

// DeepCopyInto copies the receiver into out.
func (in *SiteConfig) DeepCopyInto(out *SiteConfig) {
	*out = *in
	if in.Power != nil {
		v := *in.Power
		out.Power = &v
	}
	if in.EnergyPrice != nil {
		out.EnergyPrice = make([]float64, len(in.EnergyPrice))
		copy(out.EnergyPrice, in.EnergyPrice)
	}
	in.Inference.DeepCopyInto(&out.Inference)
	in.Miners.DeepCopyInto(&out.Miners)
}

// DeepCopy returns a new SiteConfig.
func (in *SiteConfig) DeepCopy() *SiteConfig {
	if in == nil {
		return nil
	}
	out := new(SiteConfig)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver into out.
func (in *OptimizationData) DeepCopyInto(out *OptimizationData) {
	*out = *in
	out.Sites = append([]string(nil), in.Sites...)
	out.Devices = append([]string(nil), in.Devices...)
	out.RHash = copyTable(in.RHash)
	out.RTok = copyTable(in.RTok)
	out.Power = copyTable(in.Power)
	if in.N != nil {
		out.N = make(map[string]map[string]int, len(in.N))
		for k, row := range in.N {
			r := make(map[string]int, len(row))
			for d, v := range row {
				r[d] = v
			}
			out.N[k] = r
		}
	}
	out.H = append([]float64(nil), in.H...)
	out.G = append([]float64(nil), in.G...)
	if in.E != nil {
		out.E = make(map[string][]float64, len(in.E))
		for k, v := range in.E {
			out.E[k] = append([]float64(nil), v...)
		}
	}
	if in.PMax != nil {
		out.PMax = make(map[string]float64, len(in.PMax))
		for k, v := range in.PMax {
			out.PMax[k] = v
		}
	}
	if in.PeriodHours != nil {
		v := *in.PeriodHours
		out.PeriodHours = &v
	}
	if in.Regions != nil {
		out.Regions = make(map[string]string, len(in.Regions))
		for k, v := range in.Regions {
			out.Regions[k] = v
		}
	}
}

// DeepCopy returns a new OptimizationData.
func (in *OptimizationData) DeepCopy() *OptimizationData {
	if in == nil {
		return nil
	}
	out := new(OptimizationData)
	in.DeepCopyInto(out)
	return out
}

func copyTable(in map[string]map[string]float64) map[string]map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]map[string]float64, len(in))
	for k, row := range in {
		r := make(map[string]float64, len(row))
		for d, v := range row {
			r[d] = v
		}
		out[k] = r
	}
	return out
}
