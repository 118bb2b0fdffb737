package layout

import "testing"

func TestOptionsValidateAndSetDefaults(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    Options
		wantErr bool
	}{
		{
			name: "zero value gets defaults",
			opts: Options{},
			want: Options{
				HSpacing:      DefaultHSpacing,
				VSpacing:      DefaultVSpacing,
				MaxIterations: DefaultMaxIterations,
				MaxStep:       DefaultMaxStep,
			},
		},
		{
			name: "explicit values kept",
			opts: Options{HSpacing: 1, VSpacing: 2, MaxIterations: 3, MaxStep: 4},
			want: Options{HSpacing: 1, VSpacing: 2, MaxIterations: 3, MaxStep: 4},
		},
		{
			name:    "negative spacing",
			opts:    Options{HSpacing: -1},
			wantErr: true,
		},
		{
			name:    "negative iterations",
			opts:    Options{MaxIterations: -1},
			wantErr: true,
		},
		{
			name:    "negative step",
			opts:    Options{MaxStep: -0.5},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateAndSetDefaults() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tt.opts != tt.want {
				t.Errorf("ValidateAndSetDefaults() = %+v, want %+v", tt.opts, tt.want)
			}
		})
	}
}
